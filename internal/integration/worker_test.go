//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"ratefeed/internal/service"
	"ratefeed/internal/testkit"
	"ratefeed/internal/worker"
)

func TestAsynqEnqueuer_CoalescesRequests(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)

	opt := asynq.RedisClientOpt{Addr: testkit.Global().RedisAddr()}
	client := asynq.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { _ = inspector.Close() })

	enq := worker.NewAsynqEnqueuer(client, 3, 30*time.Second, time.Hour)
	payload := service.RefreshPayload{Base: "GHS", Target: "USDC", RequestedAt: time.Now().UTC()}

	id1, err := enq.EnqueueRefresh(ctx, payload)
	if err != nil {
		t.Fatalf("first EnqueueRefresh: %v", err)
	}
	id2, err := enq.EnqueueRefresh(ctx, payload)
	if err != nil {
		t.Fatalf("second EnqueueRefresh: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected coalesced task id, got %s and %s", id1, id2)
	}

	pending, err := inspector.ListPendingTasks("default")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].Type != service.TaskTypeRefreshRate || pending[0].MaxRetry != 3 {
		t.Fatalf("unexpected task %+v", pending[0])
	}
}

func TestAsynqEnqueuer_NoCoalescing(t *testing.T) {
	resetTestData(t)
	ctx := testContext(t)

	opt := asynq.RedisClientOpt{Addr: testkit.Global().RedisAddr()}
	client := asynq.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	enq := worker.NewAsynqEnqueuer(client, 3, 30*time.Second, 0)
	payload := service.RefreshPayload{Base: "GHS", Target: "USDC", RequestedAt: time.Now().UTC()}

	id1, err := enq.EnqueueRefresh(ctx, payload)
	if err != nil {
		t.Fatalf("first EnqueueRefresh: %v", err)
	}
	id2, err := enq.EnqueueRefresh(ctx, payload)
	if err != nil {
		t.Fatalf("second EnqueueRefresh: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct task ids, got %s twice", id1)
	}
}
