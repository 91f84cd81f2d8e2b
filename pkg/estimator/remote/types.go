package remote

import (
	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator"
)

// ModelInfo is the backend's description of the served model.
type ModelInfo struct {
	Type         estimator.Type         `json:"type"`
	Capabilities estimator.Capabilities `json:"capabilities"`
}

type samplesRequest struct {
	Samples api.Dataset `json:"samples"`
}

type predictResponse struct {
	Predictions []api.Value `json:"predictions"`
}

type probaResponse struct {
	Probabilities []map[string]float64 `json:"probabilities"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// ErrorResponse is the error body returned by the backend.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
