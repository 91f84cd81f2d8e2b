// Package mock provides an in-process estimator whose behavior is supplied
// as functions. A nil function disables the matching capability.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator"
)

// Estimator is a configurable estimator for tests and demos.
type Estimator struct {
	Kind      estimator.Type
	PredictFn func(ctx context.Context, samples api.Dataset) ([]api.Value, error)
	ProbaFn   func(ctx context.Context, samples api.Dataset) ([]map[string]float64, error)
	ScoreFn   func(ctx context.Context, samples api.Dataset) ([]float64, error)

	calls atomic.Int64
}

var (
	_ estimator.Predictor     = (*Estimator)(nil)
	_ estimator.Probabilistic = (*Estimator)(nil)
	_ estimator.Ranking       = (*Estimator)(nil)
	_ estimator.Reporter      = (*Estimator)(nil)
)

// Type implements estimator.Estimator.
func (e *Estimator) Type() estimator.Type {
	if e.Kind == "" {
		return estimator.TypeClassifier
	}
	return e.Kind
}

// Capabilities implements estimator.Reporter.
func (e *Estimator) Capabilities() estimator.Capabilities {
	return estimator.Capabilities{
		Predict:       e.PredictFn != nil,
		Probabilistic: e.ProbaFn != nil,
		Ranking:       e.ScoreFn != nil,
	}
}

// Calls returns how many inference calls reached the estimator.
func (e *Estimator) Calls() int64 { return e.calls.Load() }

func (e *Estimator) Predict(ctx context.Context, samples api.Dataset) ([]api.Value, error) {
	e.calls.Add(1)
	return e.PredictFn(ctx, samples)
}

func (e *Estimator) Proba(ctx context.Context, samples api.Dataset) ([]map[string]float64, error) {
	e.calls.Add(1)
	return e.ProbaFn(ctx, samples)
}

func (e *Estimator) Score(ctx context.Context, samples api.Dataset) ([]float64, error) {
	e.calls.Add(1)
	return e.ScoreFn(ctx, samples)
}

// Constant returns a predictor answering label for every sample.
func Constant(label string) *Estimator {
	return &Estimator{
		Kind: estimator.TypeClassifier,
		PredictFn: func(_ context.Context, samples api.Dataset) ([]api.Value, error) {
			out := make([]api.Value, len(samples))
			for i := range out {
				out[i] = api.String(label)
			}
			return out, nil
		},
	}
}

// FirstFeature returns a full-capability estimator that predicts the first
// feature of each sample, gives it probability 1, and scores samples by
// their width. It makes handler results easy to predict in tests.
func FirstFeature() *Estimator {
	return &Estimator{
		Kind: estimator.TypeClassifier,
		PredictFn: func(_ context.Context, samples api.Dataset) ([]api.Value, error) {
			out := make([]api.Value, len(samples))
			for i, s := range samples {
				out[i] = s[0]
			}
			return out, nil
		},
		ProbaFn: func(_ context.Context, samples api.Dataset) ([]map[string]float64, error) {
			out := make([]map[string]float64, len(samples))
			for i, s := range samples {
				out[i] = map[string]float64{s[0].String(): 1}
			}
			return out, nil
		},
		ScoreFn: func(_ context.Context, samples api.Dataset) ([]float64, error) {
			out := make([]float64, len(samples))
			for i, s := range samples {
				out[i] = float64(len(s))
			}
			return out, nil
		},
	}
}
