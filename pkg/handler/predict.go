package handler

import (
	"context"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator"
	"github.com/rhuss/modelserve/pkg/throttle"
)

// PredictSampleHandler answers PredictSample commands.
type PredictSampleHandler struct {
	est  estimator.Estimator
	pool *throttle.Pool
}

func NewPredictSampleHandler(est estimator.Estimator, pool *throttle.Pool) *PredictSampleHandler {
	return &PredictSampleHandler{est: est, pool: pool}
}

func (h *PredictSampleHandler) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	c, ok := cmd.(*api.PredictSample)
	if !ok {
		return nil, unexpected(cmd, api.KindPredictSample)
	}
	p, ok := estimator.AsPredictor(h.est)
	if !ok {
		return nil, mismatch(h.est, api.KindPredictSample)
	}

	preds, err := infer(ctx, h.pool, api.KindPredictSample, 1, func(ctx context.Context) ([]api.Value, error) {
		return p.Predict(ctx, api.Dataset{c.Sample()})
	})
	if err != nil {
		return nil, err
	}
	if err := checkPredictions(api.KindPredictSample, preds); err != nil {
		return nil, err
	}
	return api.NewPredictSampleResponse(preds[0]), nil
}

// PredictSamplesHandler answers PredictSamples commands.
type PredictSamplesHandler struct {
	est  estimator.Estimator
	pool *throttle.Pool
}

func NewPredictSamplesHandler(est estimator.Estimator, pool *throttle.Pool) *PredictSamplesHandler {
	return &PredictSamplesHandler{est: est, pool: pool}
}

func (h *PredictSamplesHandler) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	c, ok := cmd.(*api.PredictSamples)
	if !ok {
		return nil, unexpected(cmd, api.KindPredictSamples)
	}
	p, ok := estimator.AsPredictor(h.est)
	if !ok {
		return nil, mismatch(h.est, api.KindPredictSamples)
	}

	samples := c.Samples()
	preds, err := infer(ctx, h.pool, api.KindPredictSamples, len(samples), func(ctx context.Context) ([]api.Value, error) {
		return p.Predict(ctx, samples)
	})
	if err != nil {
		return nil, err
	}
	if err := checkPredictions(api.KindPredictSamples, preds); err != nil {
		return nil, err
	}
	return api.NewPredictSamplesResponse(preds), nil
}
