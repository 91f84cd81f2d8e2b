// Command mock-backend serves a nearest-centroid iris classifier over the
// estimator backend protocol, for local runs and end-to-end tests of the
// model server.
//
// Configuration:
//
//	MOCK_PORT    - Listen port (default: 9090)
//	MOCK_API_KEY - Bearer token required on every call (optional)
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newHandler(irisModel(), os.Getenv("MOCK_API_KEY")),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type samplesRequest struct {
	Samples api.Dataset `json:"samples"`
}

func newHandler(m *centroidModel, apiKey string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/model", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":         "classifier",
			"capabilities": map[string]bool{"predict": true, "proba": true, "rank": true},
		})
	})
	mux.HandleFunc("POST /v1/predict", batch(func(s api.Sample) (any, error) { return m.predict(s) }, "predictions"))
	mux.HandleFunc("POST /v1/proba", batch(func(s api.Sample) (any, error) { return m.proba(s) }, "probabilities"))
	mux.HandleFunc("POST /v1/score", batch(func(s api.Sample) (any, error) { return m.score(s) }, "scores"))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	if apiKey == "" {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// batch applies fn to every sample of the request body and answers
// {key: [results...]}.
func batch(fn func(api.Sample) (any, error), key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req samplesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
		out := make([]any, len(req.Samples))
		for i, s := range req.Samples {
			v, err := fn(s)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			out[i] = v
		}
		writeJSON(w, http.StatusOK, map[string]any{key: out})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": message}})
}
