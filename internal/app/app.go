package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cruise-price-tracker/internal/alerting"
	"cruise-price-tracker/internal/config"
	"cruise-price-tracker/internal/crawler"
	"cruise-price-tracker/internal/logging"
	"cruise-price-tracker/internal/metrics"
	"cruise-price-tracker/internal/scheduler"
	"cruise-price-tracker/internal/service"
	"cruise-price-tracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) newAcquirer() crawler.Acquirer {
	return crawler.New(crawler.Options{
		TargetURL: a.Config.Crawler.TargetURL,
		Timeout:   a.Config.Crawler.Timeout,
		UserAgent: a.Config.Crawler.UserAgent,
		Locale:    a.Config.Crawler.Locale,
	}, a.Logger)
}

func (a *App) newDispatcher(prefs alerting.SubscriberSource) (*alerting.Dispatcher, error) {
	mailer, err := alerting.NewMailer(a.Config.Alerting, a.Logger)
	if err != nil {
		return nil, err
	}
	dispatcher := alerting.NewDispatcher(prefs, mailer, a.Logger)
	if !dispatcher.Configured() {
		a.Logger.Warn().Str("provider", a.Config.Alerting.Provider).Msg("email provider credential not configured; alerts disabled")
	}
	return dispatcher, nil
}

// openStore connects to PostgreSQL, waits for it to answer and applies pending
// migrations when database.auto_migrate is set.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}

	if err := storage.WaitForDatabase(ctx, pool, a.Config.Database.ConnectAttempts, a.Config.Database.ConnectBackoff, a.Logger); err != nil {
		closer()
		return nil, nil, err
	}

	if a.Config.Database.AutoMigrate {
		version, err := storage.RunMigrations(a.Config.Database.DSN)
		if err != nil {
			closer()
			return nil, nil, err
		}
		a.Logger.Info().Uint("schema_version", version).Msg("database schema up to date")
	}

	return store, closer, nil
}

type serviceDeps struct {
	store     *storage.Store
	acquirer  crawler.Acquirer
	scheduler *scheduler.Scheduler
	metrics   metrics.Recorder
}

func (a *App) newService(deps serviceDeps) (*service.Service, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}

	dispatcher, err := a.newDispatcher(deps.store)
	if err != nil {
		return nil, err
	}

	acquirer := deps.acquirer
	if acquirer == nil {
		acquirer = a.newAcquirer()
	}

	return service.New(service.Options{
		Acquirer:    acquirer,
		Snapshots:   deps.store,
		Preferences: deps.store,
		Notifier:    dispatcher,
		Metrics:     deps.metrics,
		Scheduler:   deps.scheduler,
		Locker:      deps.store,
		LockKey:     a.Config.Scheduler.AdvisoryLockKey,
		Location:    loc,
	}, a.Logger), nil
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured")
	}
	version, err := storage.RunMigrations(a.Config.Database.DSN)
	if err != nil {
		return err
	}
	a.Logger.Info().Uint("schema_version", version).Msg("migrations applied")
	return nil
}

// NotifyTest sends the confirmation email to the configured subscriber.
func (a *App) NotifyTest(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(serviceDeps{store: store})
	if err != nil {
		return err
	}

	if err := svc.SendTestNotification(ctx); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}
	a.Logger.Info().Msg("test notification sent")
	return nil
}

// ServeOptions tune the serve command.
type ServeOptions struct {
	Addr          string
	WithScheduler bool
}

// CrawlOptions configure a one-off crawl.
type CrawlOptions struct {
	DryRun bool
}

// ExportOptions hold parameters for exporting the chart series.
type ExportOptions struct {
	Window  string
	Limit   int
	PNGPath string
	CSVPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
