// Package worker implements background task handlers for async rate refreshes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"ratefeed/internal/rate"
	"ratefeed/internal/service"
)

// Refresher runs one resolution cycle.
type Refresher interface {
	ForceUpdate(ctx context.Context) rate.ConversionRate
}

// NewRefreshHandler returns a function to handle refresh tasks.
func NewRefreshHandler(svc Refresher, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload service.RefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}

		taskID, _ := asynq.GetTaskID(ctx)
		r := svc.ForceUpdate(ctx)
		logger.Infow("Task completed",
			"task_id", taskID,
			"queued_for", time.Since(payload.RequestedAt).String(),
			"rate", r.Rate,
			"source", r.Source,
		)
		return nil
	}
}

// AsynqEnqueuer is responsible for enqueuing tasks to an Asynq queue with specific configurations for retries and timeouts.
type AsynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
	coalesce time.Duration
}

// NewAsynqEnqueuer creates a new AsynqEnqueuer. Refresh requests for the same
// pair within one coalesce window share a task id, so asynq keeps a single
// queued task for them. A zero window gives every request its own task.
func NewAsynqEnqueuer(client *asynq.Client, maxRetry int, timeout, coalesce time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
		coalesce: coalesce,
	}
}

// EnqueueRefresh enqueues a refresh task and returns its id.
func (e *AsynqEnqueuer) EnqueueRefresh(ctx context.Context, payload service.RefreshPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	id := e.taskID(payload)
	task := asynq.NewTask(service.TaskTypeRefreshRate, data,
		asynq.TaskID(id),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)

	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return id, nil
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (e *AsynqEnqueuer) taskID(p service.RefreshPayload) string {
	if e.coalesce <= 0 {
		return uuid.New().String()
	}
	bucket := p.RequestedAt.Truncate(e.coalesce).Unix()
	return fmt.Sprintf("refresh:%s:%s:%d", p.Base, p.Target, bucket)
}

var _ service.RefreshEnqueuer = (*AsynqEnqueuer)(nil)
