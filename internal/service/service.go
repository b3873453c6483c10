package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cruise-price-tracker/internal/crawler"
	"cruise-price-tracker/internal/logging"
	"cruise-price-tracker/internal/metrics"
	"cruise-price-tracker/internal/money"
	"cruise-price-tracker/internal/scheduler"
	"cruise-price-tracker/internal/storage"
)

var (
	// ErrValidation marks rejected caller input.
	ErrValidation = errors.New("validation failed")
	// ErrNoSubscriber is returned when an operation needs a notification email and none is set.
	ErrNoSubscriber = errors.New("no notification email configured")
)

// PreferenceStore reads and writes the notification subscriber.
type PreferenceStore interface {
	GetNotificationPreference(ctx context.Context) (*storage.NotificationPreference, error)
	UpsertNotificationEmail(ctx context.Context, email string) (storage.NotificationPreference, error)
}

// Notifier delivers price change and test emails.
type Notifier interface {
	NotifyChange(ctx context.Context, previous, current storage.Snapshot) error
	SendTest(ctx context.Context, recipient string) error
}

// Options wires the service collaborators. Only Snapshots is required.
type Options struct {
	Acquirer    crawler.Acquirer
	Snapshots   storage.SnapshotStore
	Preferences PreferenceStore
	Notifier    Notifier
	Metrics     metrics.Recorder
	Scheduler   *scheduler.Scheduler
	Locker      storage.AdvisoryLocker
	LockKey     int64
	// Location buckets chart points by calendar day and month. Defaults to UTC.
	Location *time.Location
}

// Service orchestrates acquisition, persistence, and alerting.
type Service struct {
	acquirer  crawler.Acquirer
	snapshots storage.SnapshotStore
	prefs     PreferenceStore
	notifier  Notifier
	metrics   metrics.Recorder
	scheduler *scheduler.Scheduler
	locker    storage.AdvisoryLocker
	lockKey   int64
	location  *time.Location
	logger    zerolog.Logger
}

// New constructs the tracking service.
func New(opts Options, logger zerolog.Logger) *Service {
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		acquirer:  opts.Acquirer,
		snapshots: opts.Snapshots,
		prefs:     opts.Preferences,
		notifier:  opts.Notifier,
		metrics:   recorder,
		scheduler: opts.Scheduler,
		locker:    opts.Locker,
		lockKey:   opts.LockKey,
		location:  loc,
		logger:    logging.Component(logger, "service"),
	}
}

// Run begins the scheduled crawl loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ScheduledCrawl)
}

// ScheduledCrawl performs one crawl under the advisory lock when one is configured.
func (s *Service) ScheduledCrawl(ctx context.Context, due time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("due", due).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Crawl(ctx)
	return err
}

// Crawl acquires a fresh snapshot and ingests it.
func (s *Service) Crawl(ctx context.Context) (storage.Snapshot, error) {
	if s.acquirer == nil {
		return storage.Snapshot{}, fmt.Errorf("acquirer not configured")
	}

	start := time.Now()
	record, err := s.acquirer.Acquire(ctx)
	if err != nil {
		s.metrics.RecordCrawlFailure(time.Since(start))
		return storage.Snapshot{}, fmt.Errorf("acquire snapshot: %w", err)
	}

	stored, err := s.Ingest(ctx, record)
	if err != nil {
		s.metrics.RecordCrawlFailure(time.Since(start))
		return storage.Snapshot{}, err
	}

	s.metrics.RecordCrawlSuccess(time.Since(start))
	return stored, nil
}

// Ingest persists record and notifies the subscriber when the total price moved.
// Notification failures are logged and never returned.
func (s *Service) Ingest(ctx context.Context, record storage.Snapshot) (storage.Snapshot, error) {
	previous, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("load previous snapshot: %w", err)
	}

	if record.ScrapedAt.IsZero() {
		record.ScrapedAt = time.Now().UTC()
	}

	stored, err := s.snapshots.InsertSnapshot(ctx, record)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.metrics.RecordSnapshotStored()

	s.logger.Info().
		Str("snapshot_id", stored.ID.String()).
		Time("scraped_at", stored.ScrapedAt).
		Str("total_price", money.FormatNull(stored.TotalPrice, money.DefaultSymbol)).
		Msg("snapshot recorded")

	if previous != nil && PriceChanged(*previous, stored) {
		s.metrics.RecordPriceChange()
		s.notify(ctx, *previous, stored)
	}

	return stored, nil
}

func (s *Service) notify(ctx context.Context, previous, current storage.Snapshot) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyChange(ctx, previous, current); err != nil {
		s.metrics.RecordNotificationFailed()
		s.logger.Error().Err(err).
			Str("snapshot_id", current.ID.String()).
			Msg("failed to send price change notification")
		return
	}
	s.metrics.RecordNotificationSent()
}

// PriceChanged compares total prices with missing values treated as zero.
func PriceChanged(previous, current storage.Snapshot) bool {
	return money.OrZero(previous.TotalPrice).Cmp(money.OrZero(current.TotalPrice)) != 0
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
