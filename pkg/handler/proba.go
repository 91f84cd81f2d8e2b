package handler

import (
	"context"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator"
	"github.com/rhuss/modelserve/pkg/throttle"
)

// ProbaSampleHandler answers ProbaSample commands. The estimator must be
// probabilistic.
type ProbaSampleHandler struct {
	est  estimator.Estimator
	pool *throttle.Pool
}

func NewProbaSampleHandler(est estimator.Estimator, pool *throttle.Pool) *ProbaSampleHandler {
	return &ProbaSampleHandler{est: est, pool: pool}
}

func (h *ProbaSampleHandler) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	c, ok := cmd.(*api.ProbaSample)
	if !ok {
		return nil, unexpected(cmd, api.KindProbaSample)
	}
	p, ok := estimator.AsProbabilistic(h.est)
	if !ok {
		return nil, mismatch(h.est, api.KindProbaSample)
	}

	dists, err := infer(ctx, h.pool, api.KindProbaSample, 1, func(ctx context.Context) ([]map[string]float64, error) {
		return p.Proba(ctx, api.Dataset{c.Sample()})
	})
	if err != nil {
		return nil, err
	}
	return api.NewProbaSampleResponse(dists[0]), nil
}

// ProbaSamplesHandler answers ProbaSamples commands.
type ProbaSamplesHandler struct {
	est  estimator.Estimator
	pool *throttle.Pool
}

func NewProbaSamplesHandler(est estimator.Estimator, pool *throttle.Pool) *ProbaSamplesHandler {
	return &ProbaSamplesHandler{est: est, pool: pool}
}

func (h *ProbaSamplesHandler) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	c, ok := cmd.(*api.ProbaSamples)
	if !ok {
		return nil, unexpected(cmd, api.KindProbaSamples)
	}
	p, ok := estimator.AsProbabilistic(h.est)
	if !ok {
		return nil, mismatch(h.est, api.KindProbaSamples)
	}

	samples := c.Samples()
	dists, err := infer(ctx, h.pool, api.KindProbaSamples, len(samples), func(ctx context.Context) ([]map[string]float64, error) {
		return p.Proba(ctx, samples)
	})
	if err != nil {
		return nil, err
	}
	return api.NewProbaSamplesResponse(dists), nil
}
