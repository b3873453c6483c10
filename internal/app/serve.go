package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cruise-price-tracker/internal/handler"
	"cruise-price-tracker/internal/metrics"
	"cruise-price-tracker/internal/scheduler"
)

// Serve runs the HTTP API and, when enabled, the background crawl loop until
// SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	var sched *scheduler.Scheduler
	if opts.WithScheduler {
		sched = scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)
	}

	svc, err := a.newService(serviceDeps{store: store, scheduler: sched, metrics: recorder})
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.Deps{
		Service:  svc,
		AppName:  a.Config.App.Name,
		Interval: a.Config.Scheduler.Interval,
		Gatherer: registry,
		Limiter:  handler.NewLimiter(a.Config.HTTP.CrawlRatePerMinute, a.Config.HTTP.CrawlBurst),
		Logger:   a.Logger,
	})

	addr := opts.Addr
	if addr == "" {
		addr = a.Config.HTTP.Addr
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		a.Logger.Info().Str("addr", addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if sched != nil {
		go func() {
			a.Logger.Info().Dur("interval", sched.Interval()).Msg("starting crawl scheduler")
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("scheduler: %w", err)
			}
		}()
	} else {
		a.Logger.Info().Msg("scheduler disabled; crawls run only on demand")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.Logger.Error().Err(runErr).Msg("service terminated with error")
		cancel()
	}

	shutdownCtx, shutdownCancel := shutdownContext(a.Config.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	a.Logger.Info().Msg("tracker stopped")
	return runErr
}
