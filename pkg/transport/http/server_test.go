package http

import (
	"context"
	"errors"
	"net"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/transport"
)

var modelResponse = api.NewQueryModelResponse("classifier", true, false)

func staticDispatcher() transport.Dispatcher {
	return transport.DispatcherFunc(func(context.Context, *transport.Request) (api.Response, error) {
		return modelResponse, nil
	})
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	srv := NewServer(staticDispatcher())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := gohttp.Get("http://" + ln.Addr().String() + "/v1/model")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	slow := transport.DispatcherFunc(func(ctx context.Context, _ *transport.Request) (api.Response, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return modelResponse, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	srv := NewServer(slow, WithShutdownTimeout(5*time.Second))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get("http://" + ln.Addr().String() + "/v1/model")
		if err != nil {
			responseCh <- 0
			return
		}
		defer resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("slow request status = %d, want %d", status, gohttp.StatusOK)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("estimator unreachable")
	srv := NewServer(staticDispatcher(), WithReadinessCheck("estimator", func(context.Context) error { return ready }))
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != gohttp.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != gohttp.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "estimator unreachable") {
		t.Errorf("/readyz = %d %s", rec.Code, rec.Body.String())
	}

	ready = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != gohttp.StatusOK {
		t.Errorf("/readyz status = %d after recovery", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewServer(staticDispatcher()).Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/model", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != gohttp.StatusOK || !strings.Contains(rec.Body.String(), "modelserve_http_requests_total") {
		t.Errorf("/metrics = %d, missing request counter", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewServer(staticDispatcher(), WithMetricsPath("")).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != gohttp.StatusNotFound {
		t.Errorf("disabled /metrics status = %d, want 404", rec.Code)
	}
}

func TestMountedHandler(t *testing.T) {
	mounted := gohttp.HandlerFunc(func(w gohttp.ResponseWriter, _ *gohttp.Request) {
		w.WriteHeader(gohttp.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	NewServer(staticDispatcher(), WithHandler("/mcp", mounted)).Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", nil))
	if rec.Code != gohttp.StatusTeapot {
		t.Errorf("status = %d, want mounted handler", rec.Code)
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(staticDispatcher(),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithTimeouts(time.Second, 2*time.Second),
	)

	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.httpServer.ReadTimeout != time.Second || srv.httpServer.WriteTimeout != 2*time.Second {
		t.Errorf("timeouts = %v/%v", srv.httpServer.ReadTimeout, srv.httpServer.WriteTimeout)
	}
}
