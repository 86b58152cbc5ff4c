package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scentmarket/internal/events"
)

type captureClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func confirmedEvent(t *testing.T, p CreditPayload) events.Event {
	t.Helper()
	body, err := json.Marshal(events.OrderConfirmed{OrderID: p.OrderID, UserID: p.UserID, Coins: p.Coins})
	require.NoError(t, err)
	return events.Event{ID: uuid.New(), Topic: events.TopicOrderConfirmed, AggregateID: p.OrderID, Payload: body}
}

func TestCreditNotifierEnqueuesOnConfirmation(t *testing.T) {
	client := &captureClient{}
	n := CreditNotifier{Client: client, Queue: "loyalty", Log: zerolog.Nop()}
	p := CreditPayload{OrderID: uuid.New(), UserID: uuid.New(), Coins: 4}

	require.NoError(t, n.Notify(context.Background(), confirmedEvent(t, p)))
	require.Len(t, client.tasks, 1)
	require.Equal(t, TypeCredit, client.tasks[0].Type())

	var got CreditPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &got))
	require.Equal(t, p, got)
}

func TestCreditNotifierIgnoresOtherTopicsAndZeroCoins(t *testing.T) {
	client := &captureClient{}
	n := CreditNotifier{Client: client, Log: zerolog.Nop()}
	p := CreditPayload{OrderID: uuid.New(), UserID: uuid.New(), Coins: 4}

	created := confirmedEvent(t, p)
	created.Topic = events.TopicOrderCreated
	require.NoError(t, n.Notify(context.Background(), created))

	p.Coins = 0
	require.NoError(t, n.Notify(context.Background(), confirmedEvent(t, p)))
	require.Empty(t, client.tasks)
}

func TestCreditNotifierTreatsDuplicateAsDone(t *testing.T) {
	n := CreditNotifier{Client: &captureClient{err: asynq.ErrTaskIDConflict}, Log: zerolog.Nop()}
	p := CreditPayload{OrderID: uuid.New(), UserID: uuid.New(), Coins: 1}
	require.NoError(t, n.Notify(context.Background(), confirmedEvent(t, p)))

	n.Client = &captureClient{err: errors.New("redis down")}
	require.Error(t, n.Notify(context.Background(), confirmedEvent(t, p)))
}

func TestNewCreditTaskRequiresIDs(t *testing.T) {
	_, err := NewCreditTask(CreditPayload{Coins: 1}, "")
	require.Error(t, err)
}

func TestCreditHandlerSkipsRetryOnBadPayload(t *testing.T) {
	h := CreditHandler{Log: zerolog.Nop()}
	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeCredit, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeCredit, []byte(`{"coins":3}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
