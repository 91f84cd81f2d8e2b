package handler

import (
	"context"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator"
	"github.com/rhuss/modelserve/pkg/throttle"
)

// RankSampleHandler answers RankSample commands. The estimator must be a
// ranking estimator.
type RankSampleHandler struct {
	est  estimator.Estimator
	pool *throttle.Pool
}

func NewRankSampleHandler(est estimator.Estimator, pool *throttle.Pool) *RankSampleHandler {
	return &RankSampleHandler{est: est, pool: pool}
}

func (h *RankSampleHandler) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	c, ok := cmd.(*api.RankSample)
	if !ok {
		return nil, unexpected(cmd, api.KindRankSample)
	}
	r, ok := estimator.AsRanking(h.est)
	if !ok {
		return nil, mismatch(h.est, api.KindRankSample)
	}

	scores, err := infer(ctx, h.pool, api.KindRankSample, 1, func(ctx context.Context) ([]float64, error) {
		return r.Score(ctx, api.Dataset{c.Sample()})
	})
	if err != nil {
		return nil, err
	}
	return api.NewRankSampleResponse(scores[0]), nil
}

// ScoreHandler answers Score commands.
type ScoreHandler struct {
	est  estimator.Estimator
	pool *throttle.Pool
}

func NewScoreHandler(est estimator.Estimator, pool *throttle.Pool) *ScoreHandler {
	return &ScoreHandler{est: est, pool: pool}
}

func (h *ScoreHandler) Handle(ctx context.Context, cmd api.Command) (api.Response, error) {
	c, ok := cmd.(*api.Score)
	if !ok {
		return nil, unexpected(cmd, api.KindScore)
	}
	r, ok := estimator.AsRanking(h.est)
	if !ok {
		return nil, mismatch(h.est, api.KindScore)
	}

	samples := c.Samples()
	scores, err := infer(ctx, h.pool, api.KindScore, len(samples), func(ctx context.Context) ([]float64, error) {
		return r.Score(ctx, samples)
	})
	if err != nil {
		return nil, err
	}
	return api.NewScoreResponse(scores), nil
}
