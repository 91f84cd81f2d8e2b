package handler

import (
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/bus"
	"github.com/rhuss/modelserve/pkg/cache"
	"github.com/rhuss/modelserve/pkg/estimator"
	"github.com/rhuss/modelserve/pkg/throttle"
)

// Options configures the default registry.
type Options struct {
	// Pool bounds concurrent inference. Nil runs inference inline.
	Pool *throttle.Pool

	// Cache memoizes inference commands. Nil disables caching.
	Cache *cache.Cache

	// Start is reported by server_status. Zero means now.
	Start time.Time

	// Versions is reported by server_status.
	Versions map[string]string
}

// Registry returns a handler for every command kind, backed by est.
// Inference handlers are wrapped in the cache when one is configured.
// Handlers for capabilities est lacks are still registered and fail with a
// CapabilityMismatchError.
func Registry(est estimator.Estimator, opts Options) map[api.Kind]bus.Handler {
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	return map[api.Kind]bus.Handler{
		api.KindPredictSample:  Cached(NewPredictSampleHandler(est, opts.Pool), opts.Cache),
		api.KindPredictSamples: Cached(NewPredictSamplesHandler(est, opts.Pool), opts.Cache),
		api.KindProbaSample:    Cached(NewProbaSampleHandler(est, opts.Pool), opts.Cache),
		api.KindProbaSamples:   Cached(NewProbaSamplesHandler(est, opts.Pool), opts.Cache),
		api.KindRankSample:     Cached(NewRankSampleHandler(est, opts.Pool), opts.Cache),
		api.KindScore:          Cached(NewScoreHandler(est, opts.Pool), opts.Cache),
		api.KindQueryModel:     NewQueryModelHandler(est),
		api.KindServerStatus:   NewServerStatusHandler(start, opts.Versions),
	}
}

// NewBus builds a bus over the default registry.
func NewBus(est estimator.Estimator, opts Options) (*bus.Bus, error) {
	return bus.New(Registry(est, opts))
}
