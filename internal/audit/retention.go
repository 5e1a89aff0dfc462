package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/zapflow/zapflow/internal/jobs"
)

// PruneTaskType is the scheduled task removing expired security events.
const PruneTaskType = "security:prune"

// PrunePayload carries the retention window in days.
type PrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewPruneTask builds the retention task.
func NewPruneTask(retentionDays int) (*asynq.Task, error) {
	if retentionDays <= 0 {
		return nil, errors.New("audit: retention must be positive")
	}
	data, err := json.Marshal(PrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(PruneTaskType, data), nil
}

const deleteBefore = `DELETE FROM security_events WHERE occurred_at < $1`

// Prune deletes events older than before and reports how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("audit: store not initialised")
	}
	tag, err := s.db.Exec(ctx, deleteBefore, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("audit: prune events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Pruner deletes expired events.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// HandlePrune returns the worker handler for PruneTaskType.
func HandlePrune(store Pruner, metrics *jobmetrics.Metrics, logger *slog.Logger, now func() time.Time) asynq.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PrunePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionDays <= 0 {
			return fmt.Errorf("audit: invalid prune payload: %w", asynq.SkipRetry)
		}
		cutoff := now().AddDate(0, 0, -payload.RetentionDays)
		tracker := metrics.Track("security_prune")
		removed, err := store.Prune(ctx, cutoff)
		if err := tracker.End(err); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("security events pruned", slog.Int64("removed", removed), slog.Time("before", cutoff))
		}
		return nil
	}
}
