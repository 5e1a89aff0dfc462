package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func serveQueues(inspector QueueInspector) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(inspector, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queues", nil))
	return rec
}

func TestQueuesReportsCounts(t *testing.T) {
	rec := serveQueues(&fakeInspector{infos: map[string]*asynq.QueueInfo{
		QueueSecurity: {Queue: QueueSecurity, Pending: 4, Active: 1, Retry: 2, Processed: 40, Failed: 3},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Success bool          `json:"success"`
		Data    []queueStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, QueueSecurity, env.Data[0].Queue)
	assert.Equal(t, 4, env.Data[0].Pending)
	assert.Equal(t, 3, env.Data[0].Failed)
	assert.Equal(t, queueStatus{Queue: QueueDefault}, env.Data[1])
}

func TestQueuesInspectorFailure(t *testing.T) {
	rec := serveQueues(&fakeInspector{err: errors.New("redis: connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "QUEUE_UNAVAILABLE")
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

func TestQueuePriorities(t *testing.T) {
	q := Queues()
	assert.Greater(t, q[QueueSecurity], q[QueueDefault])
}

func TestNilClientEnqueueFails(t *testing.T) {
	var c *Client
	_, err := c.Enqueue(context.Background(), asynq.NewTask("x", nil))
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}
