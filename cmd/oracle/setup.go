package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pario-ai/oracle/pkg/config"
	"github.com/pario-ai/oracle/pkg/dispatch"
	"github.com/pario-ai/oracle/pkg/endpoint"
	"github.com/pario-ai/oracle/pkg/journal"
	"github.com/pario-ai/oracle/pkg/observe"
	"github.com/pario-ai/oracle/pkg/provider"
	"github.com/pario-ai/oracle/pkg/throttle"
	"github.com/pario-ai/oracle/pkg/worker"
)

// load reads the config file, applies the --log-level override and
// installs the default logger.
func (g *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// runtime is a dispatcher with everything it owns.
type runtime struct {
	dispatcher *dispatch.Dispatcher
	directory  *endpoint.Directory
	cleanup    []func(context.Context) error
}

// close shuts the dispatcher down and releases what it owns, in reverse
// order of construction.
func (r *runtime) close(ctx context.Context) error {
	return errors.Join(r.dispatcher.Close(ctx), r.closeOwned(ctx))
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{}

	if cfg.Metrics.Listen != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
		rt.cleanup = append(rt.cleanup, shutdown)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		rt.cleanup = append(rt.cleanup, srv.Shutdown)
		logger.Info("serving metrics", "addr", cfg.Metrics.Listen)
	}

	dir, err := endpoint.New(cfg, endpoint.NewKeyLoader(cfg.Credentials.KeysDir))
	if err != nil {
		return nil, errors.Join(err, rt.closeOwned(ctx))
	}
	rt.directory = dir

	pool, err := worker.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, errors.Join(err, rt.closeOwned(ctx))
	}

	opts := dispatch.Options{
		Directory:        dir,
		Executor:         worker.New(provider.NewRegistry(provider.WithTimeout(cfg.RequestTimeout)), cfg.RequestTimeout),
		Pool:             pool,
		Limiter:          throttle.New(),
		Sort:             cfg.Journal.Sort,
		DefaultModel:     cfg.DefaultModel,
		ShutdownDeadline: cfg.ShutdownDeadline,
		DefaultTimeout:   cfg.Timeout,
		Logger:           logger,
	}
	if cfg.Journal.Enabled {
		client := journal.NewClient(cfg.Journal.Addr)
		rt.cleanup = append(rt.cleanup, func(context.Context) error { return client.Close() })
		opts.Journal = client
	}

	d, err := dispatch.New(opts)
	if err != nil {
		return nil, errors.Join(err, rt.closeOwned(ctx))
	}
	rt.dispatcher = d
	return rt, nil
}

func (r *runtime) closeOwned(ctx context.Context) error {
	var errs []error
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		errs = append(errs, r.cleanup[i](ctx))
	}
	return errors.Join(errs...)
}
