package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator/mock"
	"github.com/rhuss/modelserve/pkg/handler"
	"github.com/rhuss/modelserve/pkg/transport"
)

// newTestAdapter serves a full-capability mock estimator through the
// default registry with no middleware.
func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	b, err := handler.NewBus(mock.FirstFeature(), handler.Options{})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	return NewAdapter(transport.Terminal(b), DefaultConfig())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := newTestAdapter(t).Handler()

	tests := []struct {
		method, path, body string
		want               string
	}{
		{"POST", "/v1/predictions/sample", `{"sample":["red",1.5]}`, `{"prediction":"red"}`},
		{"POST", "/v1/predictions", `{"samples":[["red",1],["blue",2]]}`, `{"predictions":["red","blue"]}`},
		{"POST", "/v1/probabilities/sample", `{"sample":[3]}`, `{"probabilities":{"3":1}}`},
		{"POST", "/v1/probabilities", `{"samples":[[3],[4]]}`, `{"probabilities":[{"3":1},{"4":1}]}`},
		{"POST", "/v1/scores/sample", `{"sample":[1,2,3]}`, `{"score":3}`},
		{"POST", "/v1/scores", `{"samples":[[1,2],[3,4]]}`, `{"scores":[2,2]}`},
		{"GET", "/v1/model", "", `{"model":{"probabilistic":true,"ranking":true,"type":"classifier"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestServerStatusRoute(t *testing.T) {
	rec := do(t, newTestAdapter(t).Handler(), "GET", "/v1/server", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, field := range []string{`"server"`, `"pid"`, `"uptime"`, `"versions"`} {
		if !strings.Contains(rec.Body.String(), field) {
			t.Errorf("body %s missing %s", rec.Body.String(), field)
		}
	}
}

func TestPayloadFreeCommandsAcceptPost(t *testing.T) {
	h := newTestAdapter(t).Handler()

	tests := []struct {
		path, body, want string
	}{
		{"/v1/model", "", `"type":"classifier"`},
		{"/v1/model", "{}", `"type":"classifier"`},
		{"/v1/server", "", `"uptime"`},
		{"/v1/server", "{}", `"uptime"`},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.body, func(t *testing.T) {
			rec := do(t, h, "POST", tt.path, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body %s missing %s", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestErrorStatuses(t *testing.T) {
	predictOnly, _ := handler.NewBus(mock.Constant("cat"), handler.Options{})

	tests := []struct {
		name       string
		dispatcher transport.Dispatcher
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"empty sample", nil, "POST", "/v1/predictions/sample", `{"sample":[]}`, http.StatusUnprocessableEntity},
		{"missing sample", nil, "POST", "/v1/predictions/sample", `{}`, http.StatusUnprocessableEntity},
		{"ragged dataset", nil, "POST", "/v1/predictions", `{"samples":[[1],[1,2]]}`, http.StatusUnprocessableEntity},
		{"boolean feature", nil, "POST", "/v1/predictions/sample", `{"sample":[true]}`, http.StatusUnprocessableEntity},
		{"malformed json", nil, "POST", "/v1/predictions/sample", `{"sample":`, http.StatusBadRequest},
		{"capability mismatch", transport.Terminal(predictOnly), "POST", "/v1/probabilities/sample", `{"sample":[1]}`, http.StatusInternalServerError},
		{"wrong method", nil, "GET", "/v1/predictions/sample", "", http.StatusMethodNotAllowed},
		{
			"unauthenticated",
			transport.DispatcherFunc(func(context.Context, *transport.Request) (api.Response, error) {
				return nil, &api.AuthenticationError{}
			}),
			"GET", "/v1/model", "", http.StatusUnauthorized,
		},
		{
			"rate limited",
			transport.DispatcherFunc(func(context.Context, *transport.Request) (api.Response, error) {
				return nil, &api.RateLimitError{}
			}),
			"GET", "/v1/model", "", http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t)
			if tt.dispatcher != nil {
				a = NewAdapter(tt.dispatcher, DefaultConfig())
			}
			rec := do(t, a.Handler(), tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusMethodNotAllowed && !strings.HasPrefix(rec.Body.String(), `{"error":`) {
				t.Errorf("body = %s, want an error object", rec.Body.String())
			}
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	b, _ := handler.NewBus(mock.FirstFeature(), handler.Options{})
	a := NewAdapter(transport.Terminal(b), Config{MaxBodySize: 16})

	rec := do(t, a.Handler(), "POST", "/v1/predictions/sample", `{"sample":[1,2,3,4,5,6,7,8,9]}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/predictions/sample", strings.NewReader(`{"sample":[1]}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	newTestAdapter(t).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestRequestMetadata(t *testing.T) {
	var got *transport.Request
	var gotID string
	d := transport.DispatcherFunc(func(ctx context.Context, req *transport.Request) (api.Response, error) {
		got = req
		gotID = transport.RequestIDFromContext(ctx)
		return api.NewQueryModelResponse("regressor", false, false), nil
	})

	req := httptest.NewRequest("GET", "/v1/model", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Request-ID", "req-42")
	req.RemoteAddr = "10.1.2.3:4567"
	rec := httptest.NewRecorder()
	NewAdapter(d, DefaultConfig()).Handler().ServeHTTP(rec, req)

	if got.Protocol != transport.ProtocolHTTP || got.RemoteAddr != "10.1.2.3:4567" {
		t.Errorf("request = %+v", got)
	}
	if got.Credentials.Scheme != "bearer" || got.Credentials.Token != "secret" {
		t.Errorf("credentials = %+v", got.Credentials)
	}
	if gotID != "req-42" || rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("request id = %q, header = %q", gotID, rec.Header().Get("X-Request-ID"))
	}
}

func TestGeneratedRequestIDIsEchoed(t *testing.T) {
	rec := do(t, newTestAdapter(t).Handler(), "GET", "/v1/model", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response has no X-Request-ID header")
	}
}

func TestErrorResponseFromPipeline(t *testing.T) {
	d := transport.DispatcherFunc(func(context.Context, *transport.Request) (api.Response, error) {
		return api.NewErrorResponse(api.ErrorTypeUntrustedClient, "client 1.2.3.4 is not trusted"), nil
	})
	rec := do(t, NewAdapter(d, DefaultConfig()).Handler(), "GET", "/v1/model", "")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"client 1.2.3.4 is not trusted"}` {
		t.Errorf("body = %s", got)
	}
}
