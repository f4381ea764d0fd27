// Package resolver queries every configured source for one cycle and keeps
// the freshest result as the current rate.
package resolver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratefeed/internal/metrics"
	"ratefeed/internal/provider"
	"ratefeed/internal/rate"
)

// DefaultHistoryLimit caps the observation history when no limit is configured.
const DefaultHistoryLimit = 1000

// Notifier receives every rate written to the current slot.
type Notifier interface {
	Notify(ctx context.Context, r rate.ConversionRate)
}

// ConfigFunc returns a snapshot of the pricing configuration.
type ConfigFunc func() rate.PricingConfig

// Resolver owns the current-rate slot and the observation history.
type Resolver struct {
	sources      map[string]provider.Source
	config       ConfigFunc
	notifier     Notifier
	historyLimit int
	now          func() time.Time
	log          *zap.SugaredLogger
	m            *metrics.RateMetrics

	// cycle serializes Resolve and ApplyFallback.
	cycle sync.Mutex

	mu      sync.RWMutex
	current rate.ConversionRate
	hasRate bool
	history []rate.PriceObservation
}

// New creates a Resolver over sources, keyed by Source.Name. notifier and m may be nil.
func New(sources []provider.Source, config ConfigFunc, notifier Notifier, historyLimit int, log *zap.SugaredLogger, m *metrics.RateMetrics) *Resolver {
	byName := make(map[string]provider.Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Resolver{
		sources:      byName,
		config:       config,
		notifier:     notifier,
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
		m:            m,
	}
}

type outcome struct {
	r  rate.ConversionRate
	ok bool
}

// Resolve runs one cycle and returns the rate it wrote. It never fails: when
// no source succeeds the configured fallback rate is used. Cancelling ctx is
// reserved for teardown: a cancelled cycle that found nothing leaves an
// existing current rate in place and notifies no one.
func (r *Resolver) Resolve(ctx context.Context) rate.ConversionRate {
	r.cycle.Lock()
	defer r.cycle.Unlock()

	cfg := r.config()
	results := r.fetchAll(ctx, cfg)

	var (
		best  rate.ConversionRate
		found bool
		obs   []rate.PriceObservation
	)
	for _, res := range results {
		if !res.ok {
			continue
		}
		obs = append(obs, rate.PriceObservation{
			Currency:   cfg.TargetCurrency,
			Price:      res.r.Rate,
			ObservedAt: res.r.ObservedAt,
			Source:     res.r.Source,
		})
		// strictly newer only, so ties keep the earlier configured source
		if !found || res.r.ObservedAt.After(best.ObservedAt) {
			best, found = res.r, true
		}
	}
	r.appendHistory(obs)

	if !found {
		if ctx.Err() != nil {
			if cur, ok := r.Current(); ok {
				r.log.Warnw("resolution interrupted, keeping current rate", "error", ctx.Err())
				return cur
			}
		}
		r.log.Warnw("no source produced a rate, using fallback",
			"fallback_rate", cfg.FallbackRate,
			"sources", cfg.Sources,
		)
		best = rate.Fallback(cfg, r.now())
	}

	r.publish(ctx, best)
	return best
}

// fetchAll queries every configured source concurrently. The result slice
// follows the configured order regardless of completion order.
func (r *Resolver) fetchAll(ctx context.Context, cfg rate.PricingConfig) []outcome {
	results := make([]outcome, len(cfg.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range cfg.Sources {
		src, ok := r.sources[name]
		if !ok {
			r.log.Warnw("unknown source skipped", "source", name)
			continue
		}
		g.Go(func() error {
			start := time.Now()
			cr, err := src.Fetch(gctx, cfg.BaseCurrency, cfg.TargetCurrency)
			if err == nil && !rate.Valid(cr.Rate) {
				err = provider.ErrValidation
			}
			r.m.RecordFetch(name, err, time.Since(start))
			if err != nil {
				r.log.Warnw("source fetch failed", "source", name, "error", err)
				return nil
			}
			r.log.Debugw("source fetched", "source", name, "label", cr.Source, "rate", cr.Rate)
			results[i] = outcome{r: cr, ok: true}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ApplyFallback writes the fallback rate when the slot is still unset and
// returns the current rate either way.
func (r *Resolver) ApplyFallback(ctx context.Context) rate.ConversionRate {
	r.cycle.Lock()
	defer r.cycle.Unlock()

	if cur, ok := r.Current(); ok {
		return cur
	}
	fb := rate.Fallback(r.config(), r.now())
	r.log.Warnw("current rate unset, applying fallback", "fallback_rate", fb.Rate)
	r.publish(ctx, fb)
	return fb
}

func (r *Resolver) publish(ctx context.Context, cr rate.ConversionRate) {
	r.mu.Lock()
	r.current, r.hasRate = cr, true
	r.mu.Unlock()

	r.m.RecordResolution(cr)
	r.log.Infow("rate resolved",
		"rate", cr.Rate,
		"source", cr.Source,
		"observed_at", cr.ObservedAt,
	)
	if r.notifier != nil {
		r.notifier.Notify(ctx, cr)
	}
}

func (r *Resolver) appendHistory(obs []rate.PriceObservation) {
	if len(obs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, obs...)
	if over := len(r.history) - r.historyLimit; over > 0 {
		r.history = append(r.history[:0:0], r.history[over:]...)
	}
}

// Current returns the current rate and whether one has been set.
func (r *Resolver) Current() (rate.ConversionRate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.hasRate
}

// History returns a copy of the observation history, oldest first.
func (r *Resolver) History() []rate.PriceObservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rate.PriceObservation, len(r.history))
	copy(out, r.history)
	return out
}
