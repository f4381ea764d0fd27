// Package service implements the rate feed facade: it owns the resolver,
// the subscriber hub and the refresh scheduler, and exposes the query,
// configuration and conversion operations.
package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ratefeed/internal/config"
	"ratefeed/internal/hub"
	"ratefeed/internal/metrics"
	"ratefeed/internal/provider"
	"ratefeed/internal/rate"
	"ratefeed/internal/repository"
	"ratefeed/internal/resolver"
	"ratefeed/internal/scheduler"
)

// RateServiceInterface defines the operations available on the rate feed.
type RateServiceInterface interface {
	Current(ctx context.Context) (*RateResult, error)
	History(ctx context.Context) []rate.PriceObservation
	Config() rate.PricingConfig
	UpdateConfig(ctx context.Context, u rate.ConfigUpdate) (rate.PricingConfig, error)
	ForceUpdate(ctx context.Context) rate.ConversionRate
	RequestRefresh(ctx context.Context) (taskID string, err error)
	RateAgeMinutes() float64
	IsStale(thresholdMinutes float64) bool
	IsStaleDefault() bool
	ToTarget(amountInBase float64) float64
	ToBase(amountInTarget float64) float64
	Convert(req ConversionRequest) (*ConversionResult, error)
	Subscribe(fn hub.Callback) (unsubscribe func())
}

// RefreshEnqueuer schedules an out-of-band resolution on the task queue.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, payload RefreshPayload) (taskID string, err error)
}

// RateService implements RateServiceInterface.
type RateService struct {
	resolver  *resolver.Resolver
	hub       *hub.Hub
	scheduler *scheduler.Scheduler
	validator Validator
	store     repository.ConfigRepository
	enqueuer  RefreshEnqueuer
	log       *zap.SugaredLogger
	now       func() time.Time

	staleAfter float64

	// updateMu serializes UpdateConfig so persist-then-apply stays atomic.
	updateMu sync.Mutex
	mu       sync.RWMutex
	cfg      rate.PricingConfig

	started     atomic.Bool
	destroyOnce sync.Once
}

// NewRateService wires a resolver over sources together with its hub and
// scheduler. store, enqueuer and m may be nil.
func NewRateService(
	sources []provider.Source,
	store repository.ConfigRepository,
	enqueuer RefreshEnqueuer,
	logger *zap.SugaredLogger,
	m *metrics.RateMetrics,
	pricingCfg config.PricingConfig,
) (*RateService, error) {
	h, err := hub.New(logger, m)
	if err != nil {
		return nil, err
	}

	s := &RateService{
		hub:        h,
		validator:  NewValidator(),
		store:      store,
		enqueuer:   enqueuer,
		log:        logger,
		now:        func() time.Time { return time.Now().UTC() },
		staleAfter: pricingCfg.StaleAfterMinutes,
		cfg:        pricingCfg.Rate(),
	}
	if s.staleAfter <= 0 {
		s.staleAfter = DefaultStaleAfterMinutes
	}
	s.resolver = resolver.New(sources, s.Config, h, pricingCfg.HistoryLimit, logger, m)
	s.scheduler = scheduler.New(s.resolver, s.cfg.RefreshInterval, logger)
	return s, nil
}

// Start loads the persisted configuration, if any, and starts the scheduler.
// It returns after the first resolution cycle has completed. A second call
// returns scheduler.ErrAlreadyStarted and changes nothing.
func (s *RateService) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return scheduler.ErrAlreadyStarted
	}

	if s.store != nil {
		stored, err := s.store.Load(ctx)
		if err != nil {
			s.log.Errorw("Failed to load stored pricing config, using defaults", "error", err)
		} else if stored != nil {
			s.mu.Lock()
			s.cfg = stored.Clone()
			s.mu.Unlock()
			if err := s.scheduler.Reset(stored.RefreshInterval); err != nil {
				s.log.Warnw("Stored refresh interval rejected", "error", err)
			}
			s.log.Infow("Loaded stored pricing config", "sources", stored.Sources, "interval", stored.RefreshInterval)
		}
	}

	return s.scheduler.Start(ctx)
}

// Destroy stops the scheduler and drops every subscriber. No notification
// fires after it returns.
func (s *RateService) Destroy() {
	s.destroyOnce.Do(func() {
		s.scheduler.Stop()
		s.hub.Close()
	})
}

// Config returns a copy of the pricing configuration.
func (s *RateService) Config() rate.PricingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// UpdateConfig validates u, merges it into the configuration, persists the
// result when a store is configured and restarts the scheduler if the
// interval changed. Other fields apply from the next cycle.
func (s *RateService) UpdateConfig(ctx context.Context, u rate.ConfigUpdate) (rate.PricingConfig, error) {
	if err := s.validator.ValidateUpdate(u); err != nil {
		return rate.PricingConfig{}, err
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	prev := s.Config()
	if u.IsEmpty() {
		return prev, nil
	}
	next := prev.Apply(u)

	if s.store != nil {
		if err := s.store.Save(ctx, next); err != nil {
			s.log.Errorw("Failed to persist pricing config", "error", err)
			return rate.PricingConfig{}, ErrInternal
		}
	}

	s.mu.Lock()
	s.cfg = next.Clone()
	s.mu.Unlock()

	if next.RefreshInterval != prev.RefreshInterval {
		if err := s.scheduler.Reset(next.RefreshInterval); err != nil {
			s.log.Errorw("Failed to restart scheduler", "error", err)
			return rate.PricingConfig{}, ErrInternal
		}
	}

	s.log.Infow("Pricing config updated",
		"base", next.BaseCurrency,
		"target", next.TargetCurrency,
		"interval", next.RefreshInterval,
		"fallback_rate", next.FallbackRate,
		"sources", next.Sources,
	)
	return next, nil
}

// RateResult is the current rate together with its freshness.
type RateResult struct {
	Rate       rate.ConversionRate
	AgeMinutes float64
	Stale      bool
}

// Current returns the current rate, or ErrNoRate before the first resolution.
func (s *RateService) Current(_ context.Context) (*RateResult, error) {
	cur, ok := s.resolver.Current()
	if !ok {
		return nil, ErrNoRate
	}
	age := cur.Age(s.now()).Minutes()
	return &RateResult{
		Rate:       cur,
		AgeMinutes: age,
		Stale:      age > s.staleAfter,
	}, nil
}

// History returns a copy of the observation history.
func (s *RateService) History(_ context.Context) []rate.PriceObservation {
	return s.resolver.History()
}

// ForceUpdate runs one resolution cycle now. The cycle outlives ctx's
// cancellation, so a caller that goes away cannot leave it unwritten; every
// source call stays bounded by its own timeout.
func (s *RateService) ForceUpdate(ctx context.Context) rate.ConversionRate {
	return s.resolver.Resolve(context.WithoutCancel(ctx))
}

// Subscribe registers fn for every resolved rate.
func (s *RateService) Subscribe(fn hub.Callback) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// DefaultStaleAfterMinutes is the staleness threshold used when none is given.
const DefaultStaleAfterMinutes = 5.0

// RateAgeMinutes returns the age of the current rate, or +Inf when unset.
func (s *RateService) RateAgeMinutes() float64 {
	cur, ok := s.resolver.Current()
	if !ok {
		return math.Inf(1)
	}
	return cur.Age(s.now()).Minutes()
}

// IsStale reports whether the current rate is older than thresholdMinutes.
// An unset rate is stale.
func (s *RateService) IsStale(thresholdMinutes float64) bool {
	return s.RateAgeMinutes() > thresholdMinutes
}

// IsStaleDefault is IsStale with the configured default threshold.
func (s *RateService) IsStaleDefault() bool {
	return s.IsStale(s.staleAfter)
}

// RequestRefresh enqueues a refresh task and returns its id.
func (s *RateService) RequestRefresh(ctx context.Context) (string, error) {
	if s.enqueuer == nil {
		return "", ErrAsyncDisabled
	}
	cfg := s.Config()
	id, err := s.enqueuer.EnqueueRefresh(ctx, RefreshPayload{
		Base:        cfg.BaseCurrency,
		Target:      cfg.TargetCurrency,
		RequestedAt: s.now(),
	})
	if err != nil {
		s.log.Errorw("Failed to enqueue refresh task", "error", err)
		return "", errors.Join(ErrInternalQueue, err)
	}
	s.log.Infow("Enqueued refresh task", "task_id", id)
	return id, nil
}

var _ RateServiceInterface = (*RateService)(nil)
