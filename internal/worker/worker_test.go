package worker

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ratefeed/internal/rate"
	"ratefeed/internal/service"
)

type mockRefresher struct {
	calls int
}

func (m *mockRefresher) ForceUpdate(context.Context) rate.ConversionRate {
	m.calls++
	return rate.ConversionRate{Rate: 15.9, Source: "coingecko"}
}

func TestRefreshHandler(t *testing.T) {
	logger := zap.NewNop().Sugar()

	t.Run("runs a cycle", func(t *testing.T) {
		svc := &mockRefresher{}
		payload, _ := json.Marshal(service.RefreshPayload{Base: "GHS", Target: "USDC", RequestedAt: time.Now()})

		err := NewRefreshHandler(svc, logger)(context.Background(), asynq.NewTask(service.TaskTypeRefreshRate, payload))
		assert.NoError(t, err)
		assert.Equal(t, 1, svc.calls)
	})

	t.Run("bad payload is dropped without retry", func(t *testing.T) {
		svc := &mockRefresher{}
		err := NewRefreshHandler(svc, logger)(context.Background(), asynq.NewTask(service.TaskTypeRefreshRate, []byte("{")))
		assert.NoError(t, err)
		assert.Equal(t, 0, svc.calls)
	})
}

func TestAsynqEnqueuer_TaskID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 3, 0, time.UTC)
	p := service.RefreshPayload{Base: "GHS", Target: "USDC", RequestedAt: at}

	t.Run("requests in one window share an id", func(t *testing.T) {
		e := NewAsynqEnqueuer(nil, 3, time.Minute, 5*time.Second)
		later := p
		later.RequestedAt = at.Add(time.Second)
		assert.Equal(t, e.taskID(p), e.taskID(later))
		assert.Equal(t, "refresh:GHS:USDC:1772366400", e.taskID(p))

		next := p
		next.RequestedAt = at.Add(5 * time.Second)
		assert.NotEqual(t, e.taskID(p), e.taskID(next))
	})

	t.Run("zero window gives unique ids", func(t *testing.T) {
		e := NewAsynqEnqueuer(nil, 3, time.Minute, 0)
		assert.NotEqual(t, e.taskID(p), e.taskID(p))
	})
}
