package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/transport"
	transporthttp "github.com/rhuss/modelserve/pkg/transport/http"
)

// REST sends commands to the REST front end.
type REST struct {
	baseURL    string
	httpClient *http.Client
	opts       options
}

var _ Client = (*REST)(nil)

// NewREST creates a REST client for the server at baseURL, for example
// "http://localhost:8000".
func NewREST(baseURL string, opts ...Option) *REST {
	o := buildOptions(opts)
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}
	return &REST{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		opts:       o,
	}
}

// Do sends cmd and decodes the response.
func (c *REST) Do(ctx context.Context, cmd api.Command) (api.Response, error) {
	route, ok := transporthttp.Routes[cmd.Kind()]
	if !ok {
		return nil, api.NewInvalidRequestError("kind", fmt.Sprintf("no route for %s", cmd.Kind()))
	}
	method, path, _ := strings.Cut(route, " ")

	var body io.Reader
	if method == http.MethodPost {
		data, err := json.Marshal(api.CommandAsMap(cmd))
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", cmd.Kind(), err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.opts.credentials.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if id := transport.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(transport.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	debug.Log("client", "rest call", "kind", cmd.Kind(), "status", resp.StatusCode,
		"request_id", resp.Header.Get(transport.RequestIDHeader))

	var rb responseBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, fmt.Errorf("decoding %s response (status %d): %w", cmd.Kind(), resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if rb.Error != nil {
			msg = *rb.Error
		}
		return nil, api.NewErrorResponse(errorTypeForStatus(resp.StatusCode), msg)
	}
	return rb.response(cmd.Kind())
}

// Close releases idle connections.
func (c *REST) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type modelBody struct {
	Type          string `json:"type"`
	Probabilistic bool   `json:"probabilistic"`
	Ranking       bool   `json:"ranking"`
}

type serverBody struct {
	Start    int64             `json:"start"`
	PID      int               `json:"pid"`
	Uptime   int64             `json:"uptime"`
	Versions map[string]string `json:"versions"`
}

// responseBody is the union of every single-key response body, shared by
// the REST and MCP front ends.
type responseBody struct {
	Prediction    *api.Value      `json:"prediction"`
	Predictions   []api.Value     `json:"predictions"`
	Probabilities json.RawMessage `json:"probabilities"`
	Score         *float64        `json:"score"`
	Scores        []float64       `json:"scores"`
	Model         *modelBody      `json:"model"`
	Server        *serverBody     `json:"server"`
	Error         *string         `json:"error"`
}

func (b *responseBody) response(kind api.Kind) (api.Response, error) {
	missing := func(key string) error {
		return api.NewServerError(fmt.Sprintf("%s response has no %q", kind, key))
	}
	switch kind {
	case api.KindPredictSample:
		if b.Prediction == nil {
			return nil, missing("prediction")
		}
		return api.NewPredictSampleResponse(*b.Prediction), nil
	case api.KindPredictSamples:
		if b.Predictions == nil {
			return nil, missing("predictions")
		}
		return api.NewPredictSamplesResponse(b.Predictions), nil
	case api.KindProbaSample:
		var dist map[string]float64
		if err := json.Unmarshal(b.Probabilities, &dist); err != nil || dist == nil {
			return nil, missing("probabilities")
		}
		return api.NewProbaSampleResponse(dist), nil
	case api.KindProbaSamples:
		var dists []map[string]float64
		if err := json.Unmarshal(b.Probabilities, &dists); err != nil || dists == nil {
			return nil, missing("probabilities")
		}
		return api.NewProbaSamplesResponse(dists), nil
	case api.KindRankSample:
		if b.Score == nil {
			return nil, missing("score")
		}
		return api.NewRankSampleResponse(*b.Score), nil
	case api.KindScore:
		if b.Scores == nil {
			return nil, missing("scores")
		}
		return api.NewScoreResponse(b.Scores), nil
	case api.KindQueryModel:
		if b.Model == nil {
			return nil, missing("model")
		}
		return api.NewQueryModelResponse(b.Model.Type, b.Model.Probabilistic, b.Model.Ranking), nil
	case api.KindServerStatus:
		if b.Server == nil {
			return nil, missing("server")
		}
		return api.NewServerStatusResponse(b.Server.Start, b.Server.PID, b.Server.Uptime, b.Server.Versions), nil
	default:
		return nil, api.NewServerError(fmt.Sprintf("unknown response kind %s", kind))
	}
}

func errorTypeForStatus(code int) api.ErrorType {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return api.ErrorTypeInvalidRequest
	case http.StatusUnprocessableEntity:
		return api.ErrorTypeValidation
	case http.StatusUnauthorized:
		return api.ErrorTypeUnauthenticated
	case http.StatusTooManyRequests:
		return api.ErrorTypeTooManyRequests
	default:
		return api.ErrorTypeServerError
	}
}
