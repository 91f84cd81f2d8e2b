package handler

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/estimator"
)

// QueryModelHandler describes the served estimator.
type QueryModelHandler struct {
	est estimator.Estimator
}

func NewQueryModelHandler(est estimator.Estimator) *QueryModelHandler {
	return &QueryModelHandler{est: est}
}

func (h *QueryModelHandler) Handle(_ context.Context, cmd api.Command) (api.Response, error) {
	if _, ok := cmd.(*api.QueryModel); !ok {
		return nil, unexpected(cmd, api.KindQueryModel)
	}
	caps := estimator.CapabilitiesOf(h.est)
	return api.NewQueryModelResponse(string(h.est.Type()), caps.Probabilistic, caps.Ranking), nil
}

// ServerStatusHandler reports process information.
type ServerStatusHandler struct {
	start    time.Time
	versions map[string]string
	now      func() time.Time
}

// NewServerStatusHandler returns a handler reporting start as the server
// start time. The Go runtime version is always added to versions.
func NewServerStatusHandler(start time.Time, versions map[string]string) *ServerStatusHandler {
	v := make(map[string]string, len(versions)+1)
	for k, val := range versions {
		v[k] = val
	}
	v["go"] = runtime.Version()
	return &ServerStatusHandler{start: start, versions: v, now: time.Now}
}

func (h *ServerStatusHandler) Handle(_ context.Context, cmd api.Command) (api.Response, error) {
	if _, ok := cmd.(*api.ServerStatus); !ok {
		return nil, unexpected(cmd, api.KindServerStatus)
	}
	uptime := int64(h.now().Sub(h.start) / time.Second)
	return api.NewServerStatusResponse(h.start.Unix(), os.Getpid(), uptime, h.versions), nil
}
