package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/scentmarket/internal/events"
)

// Repository is the persistence surface used by Service.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	Confirm(ctx context.Context, id uuid.UUID) (Order, error)
}

// Emitter publishes domain events. *events.Bus implements it.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// ErrEventPending is returned when an order was confirmed but order.confirmed
// could not be published. Confirming again re-publishes it.
var ErrEventPending = errors.New("order confirmed but event not published")

// Service reads and confirms orders.
type Service struct {
	Repo Repository
	Bus  Emitter
	Log  zerolog.Logger
}

// GetForUser returns an order owned by userID; other users' orders are reported as missing.
func (s *Service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (Order, error) {
	if s == nil || s.Repo == nil {
		return Order{}, errors.New("order service not configured")
	}
	o, err := s.Repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// Confirm marks a pending order as confirmed and emits order.confirmed, which
// schedules the coin credit. Confirming an already confirmed order emits the
// event again; the credit is applied once per order downstream.
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID) (Order, error) {
	if s == nil || s.Repo == nil {
		return Order{}, errors.New("order service not configured")
	}
	o, err := s.Repo.Confirm(ctx, orderID)
	if errors.Is(err, ErrInvalidState) {
		current, getErr := s.Repo.Get(ctx, orderID)
		if getErr != nil || current.Status != StatusConfirmed {
			return Order{}, err
		}
		o, err = current, nil
	}
	if err != nil {
		return Order{}, err
	}
	if s.Bus != nil {
		payload := events.OrderConfirmed{OrderID: o.ID, UserID: o.UserID, Coins: o.Totals.CoinsEarned}
		if _, err := s.Bus.Emit(ctx, events.TopicOrderConfirmed, o.ID, payload); err != nil {
			s.Log.Error().Err(err).Str("order_id", o.ID.String()).Msg("emit order.confirmed")
			return o, fmt.Errorf("%w: %w", ErrEventPending, err)
		}
	}
	return o, nil
}
