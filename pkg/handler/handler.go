// Package handler implements one bus.Handler per command variant.
//
// Inference handlers check the estimator capability their command needs,
// run the estimator through the worker pool, and verify that it returned
// one result per sample before wrapping the result in a response.
package handler

import (
	"context"
	"fmt"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/bus"
	"github.com/rhuss/modelserve/pkg/cache"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/estimator"
	"github.com/rhuss/modelserve/pkg/throttle"
)

// unexpected reports a command routed to the wrong handler. This only
// happens when a registry is wired by hand.
func unexpected(cmd api.Command, want api.Kind) error {
	return api.NewServerError(fmt.Sprintf("handler for %s received %s", want, cmd.Kind()))
}

func mismatch(est estimator.Estimator, kind api.Kind) error {
	return &api.CapabilityMismatchError{
		Kind:       kind,
		Capability: kind.Capability(),
		Estimator:  string(est.Type()),
	}
}

// infer runs fn through pool and checks that it produced want results.
func infer[T any](ctx context.Context, pool *throttle.Pool, kind api.Kind, want int, fn func(context.Context) ([]T, error)) ([]T, error) {
	var out []T
	err := pool.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		debug.Log("estimator", "inference failed", "kind", kind, "error", err)
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if len(out) != want {
		return nil, api.NewEstimatorError(fmt.Sprintf("%s: estimator returned %d results for %d samples", kind, len(out), want))
	}
	return out, nil
}

func checkPredictions(kind api.Kind, preds []api.Value) error {
	for i, p := range preds {
		if !p.Valid() {
			return api.NewEstimatorError(fmt.Sprintf("%s: estimator returned an invalid prediction at %d", kind, i))
		}
	}
	return nil
}

// Cached wraps h so its responses are memoized in c. A disabled or nil
// cache returns h unchanged.
func Cached(h bus.Handler, c *cache.Cache) bus.Handler {
	if !c.Enabled() {
		return h
	}
	return bus.HandlerFunc(func(ctx context.Context, cmd api.Command) (api.Response, error) {
		return c.GetOrCompute(ctx, cmd, func(ctx context.Context) (api.Response, error) {
			return h.Handle(ctx, cmd)
		})
	})
}
