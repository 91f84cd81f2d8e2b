// Package client provides Go clients for every front end of the server.
//
// Both clients implement [Client]. A command the server rejects comes
// back as an *api.ErrorResponse error, so callers can inspect its type
// with api.TypeOf.
package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/codec"
	"github.com/rhuss/modelserve/pkg/transport"
)

// ErrClosed is returned by calls on a closed or broken binary connection.
var ErrClosed = errors.New("client: connection closed")

// Client sends commands to a model server.
type Client interface {
	Do(ctx context.Context, cmd api.Command) (api.Response, error)
	Close() error
}

type options struct {
	credentials transport.Credentials
	timeout     time.Duration
	httpClient  *http.Client
	limits      codec.Limits
}

// Option configures a client.
type Option func(*options)

// WithBasicAuth sends HTTP basic credentials with every command.
func WithBasicAuth(user, password string) Option {
	return func(o *options) {
		o.credentials = transport.Credentials{Scheme: "basic", Username: user, Password: password}
	}
}

// WithToken sends a bearer token with every command.
func WithToken(token string) Option {
	return func(o *options) {
		o.credentials = transport.Credentials{Scheme: "bearer", Token: token}
	}
}

// WithTimeout bounds every call that has no earlier context deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient sets the HTTP client used by the REST client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLimits sets the frame limits used by the binary client.
func WithLimits(l codec.Limits) Option {
	return func(o *options) { o.limits = l }
}

func buildOptions(opts []Option) options {
	o := options{
		timeout: 30 * time.Second,
		limits:  codec.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Predict sends a predict_sample command.
func Predict(ctx context.Context, c Client, sample api.Sample) (api.Value, error) {
	cmd, err := api.NewPredictSample(sample)
	if err != nil {
		return api.Value{}, err
	}
	resp, err := expect[*api.PredictSampleResponse](c.Do(ctx, cmd))
	if err != nil {
		return api.Value{}, err
	}
	return resp.Prediction(), nil
}

// PredictBatch sends a predict_samples command.
func PredictBatch(ctx context.Context, c Client, samples api.Dataset) ([]api.Value, error) {
	cmd, err := api.NewPredictSamples(samples)
	if err != nil {
		return nil, err
	}
	resp, err := expect[*api.PredictSamplesResponse](c.Do(ctx, cmd))
	if err != nil {
		return nil, err
	}
	return resp.Predictions(), nil
}

// Proba sends a proba_sample command.
func Proba(ctx context.Context, c Client, sample api.Sample) (map[string]float64, error) {
	cmd, err := api.NewProbaSample(sample)
	if err != nil {
		return nil, err
	}
	resp, err := expect[*api.ProbaSampleResponse](c.Do(ctx, cmd))
	if err != nil {
		return nil, err
	}
	return resp.Probabilities(), nil
}

// ProbaBatch sends a proba_samples command.
func ProbaBatch(ctx context.Context, c Client, samples api.Dataset) ([]map[string]float64, error) {
	cmd, err := api.NewProbaSamples(samples)
	if err != nil {
		return nil, err
	}
	resp, err := expect[*api.ProbaSamplesResponse](c.Do(ctx, cmd))
	if err != nil {
		return nil, err
	}
	return resp.Probabilities(), nil
}

// Rank sends a rank_sample command.
func Rank(ctx context.Context, c Client, sample api.Sample) (float64, error) {
	cmd, err := api.NewRankSample(sample)
	if err != nil {
		return 0, err
	}
	resp, err := expect[*api.RankSampleResponse](c.Do(ctx, cmd))
	if err != nil {
		return 0, err
	}
	return resp.Score(), nil
}

// Score sends a score command.
func Score(ctx context.Context, c Client, samples api.Dataset) ([]float64, error) {
	cmd, err := api.NewScore(samples)
	if err != nil {
		return nil, err
	}
	resp, err := expect[*api.ScoreResponse](c.Do(ctx, cmd))
	if err != nil {
		return nil, err
	}
	return resp.Scores(), nil
}

// QueryModel sends a query_model command.
func QueryModel(ctx context.Context, c Client) (*api.QueryModelResponse, error) {
	return expect[*api.QueryModelResponse](c.Do(ctx, api.NewQueryModel()))
}

// ServerStatus sends a server_status command.
func ServerStatus(ctx context.Context, c Client) (*api.ServerStatusResponse, error) {
	return expect[*api.ServerStatusResponse](c.Do(ctx, api.NewServerStatus()))
}

func expect[T api.Response](resp api.Response, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	out, ok := resp.(T)
	if !ok {
		return zero, api.NewServerError("unexpected " + string(resp.Kind()) + " response")
	}
	return out, nil
}
