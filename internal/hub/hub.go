// Package hub fans resolved rates out to registered subscribers.
package hub

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"

	"ratefeed/internal/metrics"
	"ratefeed/internal/rate"
)

// Callback receives every resolved rate. A returned error is logged only.
type Callback func(ctx context.Context, r rate.ConversionRate) error

type subscription struct {
	id string
	fn Callback
}

// Hub is an ordered subscriber registry. It is safe for concurrent use and
// callbacks may unsubscribe, themselves included, while being notified.
type Hub struct {
	mu       sync.Mutex
	subs     []*subscription
	closed   bool
	inflight sync.WaitGroup
	newID    func() string
	log      *zap.SugaredLogger
	m        *metrics.RateMetrics
}

// New creates a Hub. m may be nil.
func New(log *zap.SugaredLogger, m *metrics.RateMetrics) (*Hub, error) {
	idGenerator, err := nanoid.Standard(12)
	if err != nil {
		return nil, fmt.Errorf("create id generator: %w", err)
	}
	return &Hub{
		newID: idGenerator,
		log:   log,
		m:     m,
	}, nil
}

// Subscribe registers fn and returns a function that removes it. The returned
// function may be called any number of times. After Close, Subscribe registers
// nothing.
func (h *Hub) Subscribe(fn Callback) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || fn == nil {
		return func() {}
	}
	sub := &subscription{id: h.newID(), fn: fn}
	h.subs = append(h.subs, sub)
	h.m.SetSubscribers(len(h.subs))
	h.log.Debugw("subscriber registered", "subscription_id", sub.id)

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(sub) })
	}
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs = slices.DeleteFunc(h.subs, func(s *subscription) bool { return s == sub })
	h.m.SetSubscribers(len(h.subs))
	h.log.Debugw("subscriber removed", "subscription_id", sub.id)
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Notify delivers r to a snapshot of the registry taken at call time, in
// subscription order. Subscribers added during delivery are not called for r.
// Delivery stops as soon as Close is called.
func (h *Hub) Notify(ctx context.Context, r rate.ConversionRate) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	snapshot := slices.Clone(h.subs)
	h.inflight.Add(1)
	h.mu.Unlock()
	defer h.inflight.Done()

	for _, sub := range snapshot {
		if h.isClosed() {
			return
		}
		if err := h.deliver(ctx, sub, r); err != nil {
			h.m.RecordSubscriberError()
			h.log.Warnw("subscriber failed",
				"subscription_id", sub.id,
				"source", r.Source,
				"error", err,
			)
		}
	}
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub) deliver(ctx context.Context, sub *subscription, r rate.ConversionRate) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return sub.fn(ctx, r)
}

// Close drops every subscriber and waits for running notifications to
// return. No callback starts after Close returns. It must not be called from
// inside a callback.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.subs = nil
	h.m.SetSubscribers(0)
	h.mu.Unlock()

	h.inflight.Wait()
}
