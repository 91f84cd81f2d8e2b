// Package integration runs end-to-end tests against a model server wired
// the way cmd/server wires it: a remote estimator backed by a mock backend,
// the default interceptor pipeline, and both the REST and binary front
// ends, all started in-process.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/audit"
	auditmemory "github.com/rhuss/modelserve/pkg/audit/memory"
	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/auth/basic"
	"github.com/rhuss/modelserve/pkg/cache"
	cachememory "github.com/rhuss/modelserve/pkg/cache/memory"
	"github.com/rhuss/modelserve/pkg/estimator/remote"
	"github.com/rhuss/modelserve/pkg/handler"
	"github.com/rhuss/modelserve/pkg/throttle"
	"github.com/rhuss/modelserve/pkg/transport"
	"github.com/rhuss/modelserve/pkg/transport/binary"
	transporthttp "github.com/rhuss/modelserve/pkg/transport/http"
)

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the model server and mock backend for testing.
type TestEnvironment struct {
	Server      *httptest.Server
	MockBackend *httptest.Server
	BinaryAddr  string
	Audit       *auditmemory.Store

	// BackendCalls counts inference requests that reached the backend.
	BackendCalls atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

var users = map[string]basic.User{
	"alice": {Password: "wonderland", ServiceTier: "gold"},
	"bob":   {Password: "builder"},
}

// TestMain starts the mock backend and the model server before running tests.
func TestMain(m *testing.M) {
	env, err := setupTestEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up test environment: %v\n", err)
		os.Exit(1)
	}
	testEnv = env
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

func setupTestEnvironment() (*TestEnvironment, error) {
	env := &TestEnvironment{done: make(chan struct{})}
	env.MockBackend = startMockBackend(&env.BackendCalls)

	ctx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel

	est, err := remote.New(ctx, remote.Config{BaseURL: env.MockBackend.URL})
	if err != nil {
		return nil, fmt.Errorf("creating estimator: %w", err)
	}

	b, err := handler.NewBus(est, handler.Options{
		Pool:     throttle.NewPool(4),
		Cache:    cache.New(cachememory.New(1000), time.Minute),
		Versions: map[string]string{"modelserve": "test"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating bus: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.Audit = auditmemory.New(1000)
	trusted, err := auth.TrustedClients(auth.DefaultTrustedClients, logger)
	if err != nil {
		return nil, err
	}
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{basic.New(users)},
		DefaultDecision: auth.No,
	}

	// Same order as the default configuration.
	pipeline := transport.Chain(
		transport.Recovery(logger),
		transport.RequestID(),
		transport.Logging(logger),
		trusted,
		audit.Interceptor(env.Audit, logger),
		auth.Interceptor(chain, logger),
		transport.Timeout(5*time.Second),
	)
	dispatcher := pipeline(transport.Terminal(b))

	httpSrv := transporthttp.NewServer(dispatcher,
		transporthttp.WithLogger(logger),
		transporthttp.WithReadinessCheck("audit", env.Audit.HealthCheck),
	)
	env.Server = httptest.NewServer(httpSrv.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("binary listener: %w", err)
	}
	env.BinaryAddr = ln.Addr().String()
	binSrv := binary.NewServer(dispatcher, binary.WithLogger(logger))
	go func() {
		defer close(env.done)
		binSrv.Serve(ctx, ln)
	}()

	return env, nil
}

// Teardown stops every server.
func (env *TestEnvironment) Teardown() {
	if env.cancel != nil {
		env.cancel()
		<-env.done
	}
	if env.Server != nil {
		env.Server.Close()
	}
	if env.MockBackend != nil {
		env.MockBackend.Close()
	}
}

// BaseURL returns the REST base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.Server.URL
}

// --- HTTP helpers ---

// call sends a request to the REST front end as user, or anonymously when
// user is empty.
func call(t *testing.T, method, path, user string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, testEnv.BaseURL()+path, r)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.SetBasicAuth(user, users[user].Password)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

// expectStatus fails the test when resp does not carry want, and decodes
// the body into target otherwise.
func expectStatus(t *testing.T, resp *http.Response, want int, target any) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, want, readBody(t, resp))
	}
	decodeJSON(t, resp, target)
}

// --- Mock backend ---

// startMockBackend serves a threshold classifier over the estimator
// backend protocol: samples whose first feature is below 5.5 are setosa,
// the rest virginica. Every sample needs numeric features.
func startMockBackend(calls *atomic.Int64) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/model", func(w http.ResponseWriter, r *http.Request) {
		transport.WriteJSON(w, http.StatusOK, map[string]any{
			"type":         "classifier",
			"capabilities": map[string]bool{"predict": true, "proba": true, "rank": true},
		})
	})
	mux.HandleFunc("POST /v1/predict", mockBatch(calls, "predictions", func(x float64) any {
		if x < 5.5 {
			return "setosa"
		}
		return "virginica"
	}))
	mux.HandleFunc("POST /v1/proba", mockBatch(calls, "probabilities", func(x float64) any {
		if x < 5.5 {
			return map[string]float64{"setosa": 0.9, "virginica": 0.1}
		}
		return map[string]float64{"setosa": 0.2, "virginica": 0.8}
	}))
	mux.HandleFunc("POST /v1/score", mockBatch(calls, "scores", func(x float64) any {
		return x / 10
	}))

	return httptest.NewServer(mux)
}

func mockBatch(calls *atomic.Int64, key string, fn func(float64) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Samples api.Dataset `json:"samples"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			transport.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": err.Error()}})
			return
		}
		out := make([]any, len(req.Samples))
		for i, s := range req.Samples {
			for j, v := range s {
				if _, ok := v.AsFloat(); !ok {
					transport.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
						"error": map[string]string{"message": fmt.Sprintf("feature %d must be numeric", j)},
					})
					return
				}
			}
			x, _ := s[0].AsFloat()
			out[i] = fn(x)
		}
		transport.WriteJSON(w, http.StatusOK, map[string]any{key: out})
	}
}
