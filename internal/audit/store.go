package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/scentmarket/internal/db"
)

// Entry is one recorded administrative action.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	ActorKind    ActorKind       `json:"actorKind"`
	ActorUserID  *uuid.UUID      `json:"actorUserId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store persists and lists audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, limit, offset int) ([]Entry, int, error)
}

// PGStore keeps entries in the audit_logs table.
type PGStore struct {
	DB db.DBTX
}

func (s PGStore) Insert(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO audit_logs (id, actor_kind, actor_user_id, action, resource_type, resource_id,
	method, path, status, ip, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12)`,
		e.ID, string(e.ActorKind), e.ActorUserID, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Status, e.IP, e.RequestID, nullJSON(e.Metadata))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s PGStore) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	rows, err := s.DB.Query(ctx, `
SELECT id, actor_kind, actor_user_id, action, resource_type, COALESCE(resource_id, ''),
	method, path, status, COALESCE(ip, ''), COALESCE(request_id, ''), metadata, created_at
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e    Entry
			kind string
		)
		err := row.Scan(&e.ID, &kind, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Status, &e.IP, &e.RequestID, &e.Metadata, &e.CreatedAt)
		e.ActorKind = ActorKind(kind)
		return e, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan audit logs: %w", err)
	}
	return entries, total, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
