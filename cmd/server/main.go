// Command server runs the model server.
//
// Configuration is read from a YAML or TOML file and MODELSERVE_*
// environment variables; see pkg/config. The only flag is the path of
// the configuration file:
//
//	server -config /etc/modelserve/config.yaml
//
// REST, MCP, and the binary protocol share server.port unless multiplexing
// is disabled, in which case the binary protocol listens on
// server.binary_port.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/soheilhy/cmux"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/modelserve/pkg/codec"
	"github.com/rhuss/modelserve/pkg/config"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/estimator/remote"
	"github.com/rhuss/modelserve/pkg/handler"
	"github.com/rhuss/modelserve/pkg/throttle"
	"github.com/rhuss/modelserve/pkg/transport"
	"github.com/rhuss/modelserve/pkg/transport/binary"
	transporthttp "github.com/rhuss/modelserve/pkg/transport/http"
	"github.com/rhuss/modelserve/pkg/transport/mcp"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	est, err := remote.New(ctx, remote.Config{
		BaseURL: cfg.Estimator.BackendURL,
		APIKey:  cfg.Estimator.APIKey,
		Timeout: cfg.Estimator.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating estimator: %w", err)
	}
	defer est.Close()

	predictions, err := buildCache(ctx, cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	if predictions != nil {
		defer predictions.Close()
	}

	pool := throttle.NewPool(cfg.Server.Workers)
	b, err := handler.NewBus(est, handler.Options{
		Pool:     pool,
		Cache:    predictions,
		Versions: map[string]string{"modelserve": version},
	})
	if err != nil {
		return fmt.Errorf("creating command bus: %w", err)
	}

	sink, err := buildAuditSink(ctx, cfg.Audit)
	if err != nil {
		return fmt.Errorf("opening audit sink: %w", err)
	}
	if sink != nil {
		defer sink.Close()
	}

	interceptors, err := buildInterceptors(cfg, sink, logger)
	if err != nil {
		return err
	}
	chain, err := transport.Build(cfg.Middleware, interceptors)
	if err != nil {
		return err
	}
	dispatcher := chain(transport.Terminal(b))

	logger.Info("model server configured",
		"version", version,
		"estimator", est.Type(),
		"workers", pool.Size(),
		"middleware", cfg.Middleware,
		"auth", cfg.Auth.Type,
		"audit", cfg.Audit.Type,
	)

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}
	httpOpts := []transporthttp.ServerOption{
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithLogger(logger),
	}
	if sink != nil {
		httpOpts = append(httpOpts, transporthttp.WithReadinessCheck("audit", sink.HealthCheck))
	}
	if cfg.MCP.Enabled {
		httpOpts = append(httpOpts, transporthttp.WithHandler(cfg.MCP.Path, mcp.NewServer(dispatcher, version).Handler()))
		logger.Info("mcp endpoint enabled", "path", cfg.MCP.Path)
	}
	httpSrv := transporthttp.NewServer(dispatcher, httpOpts...)

	limits := codec.DefaultLimits()
	limits.MaxPayloadBytes = cfg.Server.MaxFrameSize
	binSrv := binary.NewServer(dispatcher,
		binary.WithLimits(limits),
		binary.WithLogger(logger),
		binary.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	return serve(ctx, cfg.Server, httpSrv, binSrv)
}

// serve runs the front ends until ctx is done or one of them fails.
// Errors from listeners closed during shutdown are not reported.
func serve(ctx context.Context, cfg config.ServerConfig, httpSrv *transporthttp.Server, binSrv *binary.Server) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	goServe := func(fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		return nil
	})

	httpLn := ln
	if cfg.Multiplex {
		m := cmux.New(ln)
		binLn := m.Match(cmux.PrefixMatcher(codec.MagicPrefix))
		httpLn = m.Match(cmux.Any())
		goServe(func() error { return binSrv.Serve(gctx, binLn) })
		goServe(m.Serve)
	} else {
		binLn, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.BinaryPort)))
		if err != nil {
			ln.Close()
			return fmt.Errorf("listening for binary protocol: %w", err)
		}
		goServe(func() error { return binSrv.Serve(gctx, binLn) })
	}
	goServe(func() error { return httpSrv.Serve(gctx, httpLn) })

	return g.Wait()
}
