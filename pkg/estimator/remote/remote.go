// Package remote implements an estimator backed by an inference service
// reachable over HTTP. The service hosts the trained model; this package
// only moves samples and results across the wire.
//
// Backend protocol:
//
//	GET  /v1/model    -> {"type": "classifier", "capabilities": {"predict": true, "proba": true, "rank": false}}
//	POST /v1/predict  {"samples": [[...]]} -> {"predictions": [...]}
//	POST /v1/proba    {"samples": [[...]]} -> {"probabilities": [{...}]}
//	POST /v1/score    {"samples": [[...]]} -> {"scores": [...]}
//
// Errors are reported as {"error": {"message": "..."}} with a non-2xx status.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/estimator"
)

// Config holds the connection settings for the backend.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Estimator talks to a remote inference backend. It implements every
// capability interface and reports the subset the backend announced.
type Estimator struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	info ModelInfo
}

var (
	_ estimator.Predictor     = (*Estimator)(nil)
	_ estimator.Probabilistic = (*Estimator)(nil)
	_ estimator.Ranking       = (*Estimator)(nil)
	_ estimator.Reporter      = (*Estimator)(nil)
)

// New connects to the backend and fetches the model description. It fails
// when the backend is unreachable so that misconfiguration is caught at
// startup.
func New(ctx context.Context, cfg Config) (*Estimator, error) {
	if cfg.BaseURL == "" {
		return nil, &api.ConfigurationError{Field: "estimator.backend_url", Message: "is required"}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	e := &Estimator{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}

	info, err := e.fetchModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying model at %s: %w", e.baseURL, err)
	}
	e.info = *info

	slog.Info("estimator backend connected",
		"url", e.baseURL,
		"type", info.Type,
		"predict", info.Capabilities.Predict,
		"proba", info.Capabilities.Probabilistic,
		"rank", info.Capabilities.Ranking,
	)
	return e, nil
}

// Type implements estimator.Estimator.
func (e *Estimator) Type() estimator.Type { return e.info.Type }

// Capabilities implements estimator.Reporter.
func (e *Estimator) Capabilities() estimator.Capabilities { return e.info.Capabilities }

// Predict implements estimator.Predictor.
func (e *Estimator) Predict(ctx context.Context, samples api.Dataset) ([]api.Value, error) {
	var resp predictResponse
	if err := e.post(ctx, "/v1/predict", samples, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// Proba implements estimator.Probabilistic.
func (e *Estimator) Proba(ctx context.Context, samples api.Dataset) ([]map[string]float64, error) {
	var resp probaResponse
	if err := e.post(ctx, "/v1/proba", samples, &resp); err != nil {
		return nil, err
	}
	return resp.Probabilities, nil
}

// Score implements estimator.Ranking.
func (e *Estimator) Score(ctx context.Context, samples api.Dataset) ([]float64, error) {
	var resp scoreResponse
	if err := e.post(ctx, "/v1/score", samples, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

// Close releases idle backend connections.
func (e *Estimator) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func (e *Estimator) fetchModel(ctx context.Context) (*ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/model", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	e.authorize(httpReq)

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(ctx, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var info ModelInfo
	if err := json.NewDecoder(httpResp.Body).Decode(&info); err != nil {
		return nil, api.NewEstimatorError(fmt.Sprintf("failed to parse model description: %s", err.Error()))
	}
	if info.Type == "" {
		return nil, api.NewEstimatorError("backend did not report a model type")
	}
	return &info, nil
}

func (e *Estimator) post(ctx context.Context, path string, samples api.Dataset, out any) error {
	body, err := json.Marshal(samplesRequest{Samples: samples})
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to marshal samples: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.authorize(httpReq)

	start := time.Now()
	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return mapNetworkError(ctx, err)
	}
	defer httpResp.Body.Close()

	debug.Log("estimator", "backend call", "path", path, "samples", len(samples),
		"status", httpResp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return mapHTTPError(httpResp)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return api.NewEstimatorError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}
	return nil
}

func (e *Estimator) authorize(r *http.Request) {
	if e.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}
