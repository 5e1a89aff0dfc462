package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zapflow/zapflow/jobs"
)

// TaskType is the asynq task type carrying an Event.
const TaskType = "security:audit"

const enqueueTimeout = 2 * time.Second

// NewTask wraps an event into an asynq task.
func NewTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal event: %w", err)
	}
	return asynq.NewTask(TaskType, data), nil
}

// Enqueuer submits tasks to the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Recorder enqueues security events. Failures are logged and never reach the
// caller.
type Recorder struct {
	queue  Enqueuer
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(queue Enqueuer, logger *slog.Logger) *Recorder {
	return &Recorder{queue: queue, logger: logger, now: time.Now}
}

// Record stamps and enqueues the event. The enqueue outlives a cancelled
// request context but is bounded by a short timeout.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.queue == nil {
		return
	}
	event.stamp(r.now())
	task, err := NewTask(event)
	if err != nil {
		r.warn("audit build task", event, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if _, err := r.queue.Enqueue(ctx, task, asynq.Queue(jobs.QueueSecurity), asynq.MaxRetry(5), asynq.TaskID(event.ID.String())); err != nil {
		r.warn("audit enqueue", event, err)
	}
}

func (r *Recorder) warn(msg string, event Event, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, slog.String("kind", string(event.Kind)), slog.String("event_id", event.ID.String()), slog.Any("error", err))
}
