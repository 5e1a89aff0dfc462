package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	jobmetrics "github.com/zapflow/zapflow/internal/jobs"
)

// Execer is the subset of pgxpool.Pool used by Store.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes events into security_events.
type Store struct {
	db Execer
}

// NewStore returns a new Store.
func NewStore(db Execer) *Store {
	return &Store{db: db}
}

const insertEvent = `INSERT INTO security_events
	(id, kind, code, actor_id, tenant_id, target_id, method, path, remote_ip, request_id, meta, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING`

// Insert persists the event. Replays of the same event id are ignored.
func (s *Store) Insert(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return errors.New("audit: store not initialised")
	}
	if event.Kind == "" {
		return errors.New("audit: event kind required")
	}
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("audit: marshal meta: %w", err)
	}
	_, err = s.db.Exec(ctx, insertEvent,
		event.ID, string(event.Kind), event.Code,
		event.ActorID, event.TenantID, event.TargetID,
		event.Method, event.Path, event.RemoteIP, event.RequestID,
		meta, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Inserter persists events.
type Inserter interface {
	Insert(ctx context.Context, event Event) error
}

// HandleTask returns the worker handler for TaskType.
func HandleTask(store Inserter, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var event Event
		if err := json.Unmarshal(t.Payload(), &event); err != nil {
			if logger != nil {
				logger.Error("audit task payload", slog.Any("error", err))
			}
			return fmt.Errorf("audit: decode payload: %w", asynq.SkipRetry)
		}
		tracker := metrics.Track("security_audit")
		if err := tracker.End(store.Insert(ctx, event)); err != nil {
			return err
		}
		metrics.AddSecurityEvent(string(event.Kind))
		return nil
	}
}
