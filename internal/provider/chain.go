package provider

import (
	"context"
	"errors"
	"fmt"
)

// Quote is a single validated value together with how it was obtained.
type Quote struct {
	Value float64
	Route Route
}

// Step is one fallible strategy in an ordered chain.
type Step struct {
	// Stage names the derivation this step performs; empty for the primary one.
	Stage string
	Run   func(ctx context.Context) (Quote, error)
	// Skip, when set, is consulted with the previous step's error and may
	// decide the step does not apply.
	Skip func(prev error) bool
}

// FirstSuccess runs steps in order and returns the first successful quote
// together with the stage of the step that produced it.
func FirstSuccess(ctx context.Context, steps ...Step) (Quote, string, error) {
	var errs []error
	var prev error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrNetwork, err))
			break
		}
		if s.Skip != nil && s.Skip(prev) {
			continue
		}
		q, err := s.Run(ctx)
		if err == nil {
			return q, s.Stage, nil
		}
		errs = append(errs, err)
		prev = err
	}
	if len(errs) == 0 {
		return Quote{}, "", errors.New("no applicable strategy")
	}
	return Quote{}, "", errors.Join(errs...)
}

// skipWhenPairMissing skips the relay once the provider has reported the
// pair as missing.
func skipWhenPairMissing(prev error) bool {
	return errors.Is(prev, ErrNoSuchPair)
}

// directThenRelay is the standard two-step chain for one logical request.
// A nil relay leaves only the direct step.
func directThenRelay(direct, relay func(ctx context.Context) (float64, error)) []Step {
	steps := []Step{
		{Run: func(ctx context.Context) (Quote, error) {
			v, err := direct(ctx)
			return Quote{Value: v, Route: RouteDirect}, err
		}},
	}
	if relay == nil {
		return steps
	}
	return append(steps, Step{
		Run: func(ctx context.Context) (Quote, error) {
			v, err := relay(ctx)
			if err != nil {
				return Quote{}, fmt.Errorf("relay: %w", err)
			}
			return Quote{Value: v, Route: RouteRelay}, nil
		},
		Skip: skipWhenPairMissing,
	})
}
