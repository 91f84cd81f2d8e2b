// Package http serves commands over REST.
//
// Each command kind has a fixed route. Inference routes take a JSON body
// of the form {"sample": [...]} or {"samples": [[...], ...]}; the model and
// server routes take none and answer both GET and POST. Successful
// responses are the single-key map of the response, failures are
// {"error": "<message>"}.
package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/transport"
)

// Routes maps each command kind to its method and path.
var Routes = map[api.Kind]string{
	api.KindPredictSample:  "POST /v1/predictions/sample",
	api.KindPredictSamples: "POST /v1/predictions",
	api.KindProbaSample:    "POST /v1/probabilities/sample",
	api.KindProbaSamples:   "POST /v1/probabilities",
	api.KindRankSample:     "POST /v1/scores/sample",
	api.KindScore:          "POST /v1/scores",
	api.KindQueryModel:     "GET /v1/model",
	api.KindServerStatus:   "GET /v1/server",
}

// Adapter translates REST requests into transport requests.
type Adapter struct {
	dispatcher transport.Dispatcher
	mux        *http.ServeMux
	config     Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an adapter dispatching to d. The middleware chain is
// expected to be applied to d already.
func NewAdapter(d transport.Dispatcher, cfg Config) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	a := &Adapter{
		dispatcher: d,
		mux:        http.NewServeMux(),
		config:     cfg,
	}
	for kind, pattern := range Routes {
		a.mux.HandleFunc(pattern, a.handle(kind))
		// Commands without payload also accept POST, with an empty or {} body.
		if path, ok := strings.CutPrefix(pattern, "GET "); ok {
			a.mux.HandleFunc("POST "+path, a.handle(kind))
		}
	}
	return a
}

// Handler returns the http.Handler for this adapter. The returned handler
// assigns the request ID, taken from the X-Request-ID header when the client
// sent one, and echoes it in the response.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(transport.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(transport.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

func (a *Adapter) handle(kind api.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Method == http.MethodPost {
			var ok bool
			if body, ok = a.readBody(w, r); !ok {
				return
			}
		}

		cmd, err := api.CommandFromJSON(kind, body)
		if err != nil {
			debug.Log("transport", "command rejected", "kind", kind, "error", err)
			transport.WriteError(w, err)
			return
		}

		req := &transport.Request{
			Command:     cmd,
			RemoteAddr:  r.RemoteAddr,
			Credentials: transport.ParseAuthorization(r.Header.Get("Authorization")),
			Protocol:    transport.ProtocolHTTP,
			Header:      map[string]string{"User-Agent": r.UserAgent()},
		}

		resp, err := a.dispatcher.Dispatch(r.Context(), req)
		if err != nil {
			transport.WriteError(w, err)
			return
		}
		if e, ok := resp.(*api.ErrorResponse); ok {
			transport.WriteError(w, e)
			return
		}
		transport.WriteResponse(w, resp)
	}
}

// readBody reads the request body within the size limit. On failure it
// writes the error and returns false.
func (a *Adapter) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.AsErrorResponse(api.NewInvalidRequestError("content_type", "Content-Type must be application/json")),
				http.StatusUnsupportedMediaType,
			)
			return nil, false
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.config.MaxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.AsErrorResponse(api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize))),
				http.StatusRequestEntityTooLarge,
			)
			return nil, false
		}
		transport.WriteError(w, api.NewInvalidRequestError("body", "reading body: "+err.Error()))
		return nil, false
	}
	return body, true
}
