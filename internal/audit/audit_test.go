package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/zapflow/zapflow/internal/jobs"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
	ctxOK bool
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.ctxOK = ctx.Err() == nil
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type fakeExec struct {
	sql  string
	args []any
	tag  pgconn.CommandTag
	err  error
}

func (e *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return e.tag, e.err
}

func TestRecorderStampsAndEnqueues(t *testing.T) {
	queue := &fakeQueue{}
	rec := NewRecorder(queue, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	req := httptest.NewRequest("GET", "/api/tenants/2/users", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	event := FromRequest(req, KindAccessDenied, "TENANT_MISMATCH")

	rec.Record(context.Background(), event)

	require.Len(t, queue.tasks, 1)
	assert.Equal(t, TaskType, queue.tasks[0].Type())
	var got Event
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &got))
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.True(t, fixed.Equal(got.OccurredAt))
	assert.Equal(t, KindAccessDenied, got.Kind)
	assert.Equal(t, "10.0.0.9", got.RemoteIP)
	assert.Equal(t, "/api/tenants/2/users", got.Path)
}

func TestRecorderSurvivesCancelledRequest(t *testing.T) {
	queue := &fakeQueue{}
	rec := NewRecorder(queue, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.Record(ctx, Event{Kind: KindAuthRejected})

	assert.True(t, queue.ctxOK)
	assert.Len(t, queue.tasks, 1)
}

func TestRecorderSwallowsQueueErrors(t *testing.T) {
	rec := NewRecorder(&fakeQueue{err: errors.New("redis down")}, nil)
	assert.NotPanics(t, func() { rec.Record(context.Background(), Event{Kind: KindLoginFailed}) })

	var nilRec *Recorder
	assert.NotPanics(t, func() { nilRec.Record(context.Background(), Event{Kind: KindLoginFailed}) })
}

func TestStoreInsert(t *testing.T) {
	exec := &fakeExec{}
	store := NewStore(exec)
	actor := int64(4)
	event := Event{ID: uuid.New(), Kind: KindUserCreated, ActorID: &actor, OccurredAt: time.Now()}

	require.NoError(t, store.Insert(context.Background(), event))
	assert.Contains(t, exec.sql, "INSERT INTO security_events")
	require.Len(t, exec.args, 12)
	assert.Equal(t, "user.created", exec.args[1])

	assert.Error(t, store.Insert(context.Background(), Event{}))
}

func TestHandleTaskPersistsEvent(t *testing.T) {
	exec := &fakeExec{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	handler := HandleTask(NewStore(exec), metrics, nil)

	task, err := NewTask(Event{ID: uuid.New(), Kind: KindAuthRejected, Code: "TOKEN_EXPIRED"})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	assert.Equal(t, "TOKEN_EXPIRED", exec.args[2])
}

func TestHandleTaskSkipsRetryOnBadPayload(t *testing.T) {
	handler := HandleTask(NewStore(&fakeExec{}), nil, nil)
	err := handler(context.Background(), asynq.NewTask(TaskType, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleTaskReturnsStoreErrorForRetry(t *testing.T) {
	boom := errors.New("db down")
	handler := HandleTask(NewStore(&fakeExec{err: boom}), nil, nil)
	task, err := NewTask(Event{ID: uuid.New(), Kind: KindAccessDenied})
	require.NoError(t, err)

	assert.ErrorIs(t, handler(context.Background(), task), boom)
}

func TestFromRequestPrefersMiddlewareRequestID(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/users", nil)
	req.Header.Set(middleware.RequestIDHeader, "client-supplied")
	assert.Equal(t, "client-supplied", FromRequest(req, KindUserCreated, "").RequestID)

	ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "server-1")
	assert.Equal(t, "server-1", FromRequest(req.WithContext(ctx), KindUserCreated, "").RequestID)
}

func TestPruneDeletesBeforeCutoff(t *testing.T) {
	exec := &fakeExec{tag: pgconn.NewCommandTag("DELETE 3")}
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	handler := HandlePrune(NewStore(exec), nil, nil, func() time.Time { return now })

	task, err := NewPruneTask(30)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	assert.Contains(t, exec.sql, "DELETE FROM security_events")
	require.Len(t, exec.args, 1)
	cutoff, ok := exec.args[0].(time.Time)
	require.True(t, ok)
	assert.True(t, cutoff.Equal(now.AddDate(0, 0, -30)))
}

func TestPruneRejectsBadPayload(t *testing.T) {
	_, err := NewPruneTask(0)
	assert.Error(t, err)

	handler := HandlePrune(NewStore(&fakeExec{}), nil, nil, nil)
	err = handler(context.Background(), asynq.NewTask(PruneTaskType, []byte(`{"retention_days":-1}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStorePruneReportsRows(t *testing.T) {
	store := NewStore(&fakeExec{tag: pgconn.NewCommandTag("DELETE 7")})
	removed, err := store.Prune(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}
