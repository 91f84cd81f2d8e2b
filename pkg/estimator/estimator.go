// Package estimator defines the capability interfaces through which the
// server consumes a trained model.
//
// An Estimator only has to report its type. Prediction, class
// probabilities, and ranking scores are optional capabilities expressed as
// separate interfaces; handlers check for them before dispatching work.
// Estimators whose capabilities are only known at runtime, such as a remote
// backend, additionally implement Reporter so a capability they type-assert
// to but do not actually offer can be switched off.
//
// Implementations must be safe for concurrent use by multiple goroutines.
package estimator

import (
	"context"

	"github.com/rhuss/modelserve/pkg/api"
)

// Type names the family of a trained estimator.
type Type string

const (
	TypeClassifier      Type = "classifier"
	TypeRegressor       Type = "regressor"
	TypeClusterer       Type = "clusterer"
	TypeAnomalyDetector Type = "anomaly_detector"
)

// Estimator is a trained model served by the gateway.
type Estimator interface {
	Type() Type
}

// Predictor produces one prediction per sample.
type Predictor interface {
	Estimator
	Predict(ctx context.Context, samples api.Dataset) ([]api.Value, error)
}

// Probabilistic produces a probability distribution over classes per sample.
type Probabilistic interface {
	Estimator
	Proba(ctx context.Context, samples api.Dataset) ([]map[string]float64, error)
}

// Ranking produces an anomaly or ranking score per sample.
type Ranking interface {
	Estimator
	Score(ctx context.Context, samples api.Dataset) ([]float64, error)
}

// Capabilities declares which optional interfaces an estimator serves.
type Capabilities struct {
	Predict       bool `json:"predict"`
	Probabilistic bool `json:"proba"`
	Ranking       bool `json:"rank"`
}

// Reporter is implemented by estimators whose capabilities are decided at
// runtime.
type Reporter interface {
	Capabilities() Capabilities
}

// AsPredictor returns est as a Predictor when it offers predictions.
func AsPredictor(est Estimator) (Predictor, bool) {
	p, ok := est.(Predictor)
	if !ok {
		return nil, false
	}
	if r, ok := est.(Reporter); ok && !r.Capabilities().Predict {
		return nil, false
	}
	return p, true
}

// AsProbabilistic returns est as a Probabilistic when it offers probabilities.
func AsProbabilistic(est Estimator) (Probabilistic, bool) {
	p, ok := est.(Probabilistic)
	if !ok {
		return nil, false
	}
	if r, ok := est.(Reporter); ok && !r.Capabilities().Probabilistic {
		return nil, false
	}
	return p, true
}

// AsRanking returns est as a Ranking when it offers scores.
func AsRanking(est Estimator) (Ranking, bool) {
	p, ok := est.(Ranking)
	if !ok {
		return nil, false
	}
	if r, ok := est.(Reporter); ok && !r.Capabilities().Ranking {
		return nil, false
	}
	return p, true
}

// CapabilitiesOf reports the capabilities est actually serves.
func CapabilitiesOf(est Estimator) Capabilities {
	_, predict := AsPredictor(est)
	_, proba := AsProbabilistic(est)
	_, rank := AsRanking(est)
	return Capabilities{Predict: predict, Probabilistic: proba, Ranking: rank}
}

// Supports reports whether est serves capability c. CapabilityNone is
// always supported.
func Supports(est Estimator, c api.Capability) bool {
	caps := CapabilitiesOf(est)
	switch c {
	case api.CapabilityPredict:
		return caps.Predict
	case api.CapabilityProbabilistic:
		return caps.Probabilistic
	case api.CapabilityRanking:
		return caps.Ranking
	default:
		return true
	}
}
