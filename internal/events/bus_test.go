package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scentmarket/internal/events"
)

type stubStore struct {
	last events.Event
	err  error
}

func (s *stubStore) InsertEvent(_ context.Context, ev events.Event) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	s.last = ev
	return ev, nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}, Now: func() time.Time { return fixed }}

	aggregate := uuid.New()
	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, aggregate, map[string]any{"orderId": "123"})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, store.last.Topic)
	require.Equal(t, aggregate, store.last.AggregateID)
	require.Equal(t, fixed, store.last.OccurredAt)
	require.JSONEq(t, `{"orderId":"123"}`, string(store.last.Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)

	var decoded map[string]string
	require.NoError(t, event.Decode(&decoded))
	require.Equal(t, "123", decoded["orderId"])
}

func TestEmitValidation(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), "not-json")
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), nil)
	require.Error(t, err)
}

func TestEmitStoreFailureSkipsNotifiers(t *testing.T) {
	notifier := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{err: errors.New("db down")}, Notifiers: []events.Notifier{notifier}}
	_, err := bus.Emit(context.Background(), events.TopicOrderConfirmed, uuid.New(), nil)
	require.Error(t, err)
	require.Empty(t, notifier.events)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	failing := &captureNotifier{err: errors.New("queue unavailable")}
	ok := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{failing, nil, ok}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderConfirmed, uuid.New(), []byte(`{"coins":3}`))
	require.Error(t, err)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.Len(t, ok.events, 1)
	require.JSONEq(t, `{"coins":3}`, string(ok.events[0].Payload))
}
