package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/scentmarket/internal/db"
	"github.com/noah-isme/scentmarket/internal/events"
)

// TypeCredit is the asynq task type that credits coins for a confirmed order.
const TypeCredit = "loyalty:credit"

// CreditPayload is the body of a TypeCredit task.
type CreditPayload struct {
	OrderID uuid.UUID `json:"orderId"`
	UserID  uuid.UUID `json:"userId"`
	Coins   int64     `json:"coins"`
}

// NewCreditTask builds a credit task. The task id is derived from the order so
// a second enqueue for the same order is rejected by asynq.
func NewCreditTask(p CreditPayload, queue string) (*asynq.Task, error) {
	if p.OrderID == uuid.Nil || p.UserID == uuid.Nil {
		return nil, errors.New("loyalty: order and user ids are required")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{
		asynq.TaskID(TypeCredit + ":" + p.OrderID.String()),
		asynq.MaxRetry(10),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(24 * time.Hour),
	}
	if queue != "" {
		opts = append(opts, asynq.Queue(queue))
	}
	return asynq.NewTask(TypeCredit, body, opts...), nil
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CreditNotifier schedules coin credits when orders are confirmed.
type CreditNotifier struct {
	Client TaskEnqueuer
	Queue  string
	Log    zerolog.Logger
}

// Notify implements events.Notifier.
func (n CreditNotifier) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicOrderConfirmed {
		return nil
	}
	var confirmed events.OrderConfirmed
	if err := ev.Decode(&confirmed); err != nil {
		return fmt.Errorf("loyalty: decode %s: %w", ev.Topic, err)
	}
	p := CreditPayload(confirmed)
	if p.Coins <= 0 {
		return nil
	}
	if n.Client == nil {
		return errors.New("loyalty: task client not configured")
	}
	task, err := NewCreditTask(p, n.Queue)
	if err != nil {
		return err
	}
	info, err := n.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loyalty: enqueue credit: %w", err)
	}
	n.Log.Debug().Str("task_id", info.ID).Str("order_id", p.OrderID.String()).Int64("coins", p.Coins).Msg("coin credit scheduled")
	return nil
}

// CreditHandler processes TypeCredit tasks in its own transaction.
type CreditHandler struct {
	DB  db.TxBeginner
	Log zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h CreditHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p CreditPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("loyalty: decode task: %v: %w", err, asynq.SkipRetry)
	}
	if p.OrderID == uuid.Nil || p.UserID == uuid.Nil {
		return fmt.Errorf("loyalty: incomplete task payload: %w", asynq.SkipRetry)
	}
	var applied bool
	err := db.InTx(ctx, h.DB, func(tx pgx.Tx) error {
		var err error
		applied, err = Ledger{Q: Store{DB: tx}}.Credit(ctx, p.UserID, p.OrderID, p.Coins)
		return err
	})
	if err != nil {
		return err
	}
	h.Log.Info().
		Str("order_id", p.OrderID.String()).
		Str("user_id", p.UserID.String()).
		Int64("coins", p.Coins).
		Bool("applied", applied).
		Msg("coin credit processed")
	return nil
}
