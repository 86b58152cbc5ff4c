package events

import (
	"context"

	"github.com/noah-isme/scentmarket/internal/db"
)

// PGStore writes events to the domain_events table.
type PGStore struct {
	DB db.DBTX
}

func (s PGStore) InsertEvent(ctx context.Context, ev Event) (Event, error) {
	const q = `
INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, topic, aggregate_id, payload, occurred_at`
	var out Event
	err := s.DB.QueryRow(ctx, q, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt).
		Scan(&out.ID, &out.Topic, &out.AggregateID, &out.Payload, &out.OccurredAt)
	return out, err
}
