package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const snapshotColumns = `
        id,
        scraped_at,
        itinerary_name,
        leaving_from,
        onboard,
        sail_start_date,
        sail_end_date,
        guest_summary,
        room_type,
        room_subtype,
        room_category,
        cruise_fare,
        discounts,
        subtotal,
        taxes_and_fees,
        total_price,
        currency_code,
        url,
        raw_payload,
        created_at`

const (
	insertSnapshotSQL = `INSERT INTO cruise_price_snapshots (
        scraped_at,
        itinerary_name,
        leaving_from,
        onboard,
        sail_start_date,
        sail_end_date,
        guest_summary,
        room_type,
        room_subtype,
        room_category,
        cruise_fare,
        discounts,
        subtotal,
        taxes_and_fees,
        total_price,
        currency_code,
        url,
        raw_payload
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
    )
    RETURNING` + snapshotColumns + `;`

	latestSnapshotSQL = `SELECT` + snapshotColumns + `
    FROM cruise_price_snapshots
    ORDER BY scraped_at DESC
    LIMIT 1;`

	listRecentSnapshotsSQL = `SELECT` + snapshotColumns + `
    FROM cruise_price_snapshots
    ORDER BY scraped_at DESC
    LIMIT $1;`

	listOldestSnapshotsSQL = `SELECT` + snapshotColumns + `
    FROM cruise_price_snapshots
    ORDER BY scraped_at ASC
    LIMIT $1;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM cruise_price_snapshots;`

	getPreferenceSQL = `SELECT email, updated_at
    FROM notification_preferences
    WHERE id = 1;`

	upsertPreferenceSQL = `INSERT INTO notification_preferences (id, email, updated_at)
    VALUES (1, $1, now())
    ON CONFLICT (id) DO UPDATE
    SET email      = EXCLUDED.email,
        updated_at = EXCLUDED.updated_at
    RETURNING email, updated_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for snapshot persistence. Snapshots are append-only.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snapshot Snapshot) (Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	ListOldestSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots and the notification preference.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session when the connection is recycled
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSnapshot persists a new snapshot and returns it with server-assigned fields.
func (s *Store) InsertSnapshot(ctx context.Context, snapshot Snapshot) (Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return Snapshot{}, err
	}

	payload := []byte(snapshot.RawPayload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	row := pool.QueryRow(ctx, insertSnapshotSQL,
		snapshot.ScrapedAt,
		snapshot.ItineraryName,
		snapshot.LeavingFrom,
		snapshot.Onboard,
		snapshot.SailStartDate,
		snapshot.SailEndDate,
		snapshot.GuestSummary,
		snapshot.RoomType,
		snapshot.RoomSubtype,
		snapshot.RoomCategory,
		decimalArg(snapshot.CruiseFare),
		decimalArg(snapshot.Discounts),
		decimalArg(snapshot.Subtotal),
		decimalArg(snapshot.TaxesAndFees),
		decimalArg(snapshot.TotalPrice),
		snapshot.CurrencyCode,
		snapshot.URL,
		payload,
	)

	stored, err := scanSnapshot(row)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return stored, nil
}

// LatestSnapshot returns the most recently scraped snapshot, or nil when none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	snapshot, err := scanSnapshot(pool.QueryRow(ctx, latestSnapshotSQL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// ListRecentSnapshots lists the most recent snapshots ordered by descending scrape time.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.list(ctx, "list recent snapshots", listRecentSnapshotsSQL, limit)
}

// ListOldestSnapshots lists the earliest snapshots ordered by ascending scrape time.
func (s *Store) ListOldestSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.list(ctx, "list oldest snapshots", listOldestSnapshotsSQL, limit)
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("%s: %w", op, queryErr)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		snapshot, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%s: %w", op, scanErr)
		}
		snapshots = append(snapshots, snapshot)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}
	return snapshots, nil
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// GetNotificationPreference returns the configured subscriber, or nil when unset.
func (s *Store) GetNotificationPreference(ctx context.Context) (*NotificationPreference, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var pref NotificationPreference
	err = pool.QueryRow(ctx, getPreferenceSQL).Scan(&pref.Email, &pref.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return &pref, nil
}

// UpsertNotificationEmail overwrites the singleton preference row.
func (s *Store) UpsertNotificationEmail(ctx context.Context, email string) (NotificationPreference, error) {
	pool, err := s.getPool()
	if err != nil {
		return NotificationPreference{}, err
	}

	var pref NotificationPreference
	if err := pool.QueryRow(ctx, upsertPreferenceSQL, email).Scan(&pref.Email, &pref.UpdatedAt); err != nil {
		return NotificationPreference{}, fmt.Errorf("upsert notification preference: %w", err)
	}
	return pref, nil
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.StringFixed(2)
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snapshot   Snapshot
		id         uuid.UUID
		fare       *string
		discounts  *string
		subtotal   *string
		taxes      *string
		total      *string
		rawPayload []byte
	)

	if err := row.Scan(
		&id,
		&snapshot.ScrapedAt,
		&snapshot.ItineraryName,
		&snapshot.LeavingFrom,
		&snapshot.Onboard,
		&snapshot.SailStartDate,
		&snapshot.SailEndDate,
		&snapshot.GuestSummary,
		&snapshot.RoomType,
		&snapshot.RoomSubtype,
		&snapshot.RoomCategory,
		&fare,
		&discounts,
		&subtotal,
		&taxes,
		&total,
		&snapshot.CurrencyCode,
		&snapshot.URL,
		&rawPayload,
		&snapshot.CreatedAt,
	); err != nil {
		return Snapshot{}, err
	}
	snapshot.ID = id
	snapshot.RawPayload = json.RawMessage(rawPayload)

	var err error
	if snapshot.CruiseFare, err = parseNullDecimal(fare); err != nil {
		return Snapshot{}, fmt.Errorf("parse cruise fare: %w", err)
	}
	if snapshot.Discounts, err = parseNullDecimal(discounts); err != nil {
		return Snapshot{}, fmt.Errorf("parse discounts: %w", err)
	}
	if snapshot.Subtotal, err = parseNullDecimal(subtotal); err != nil {
		return Snapshot{}, fmt.Errorf("parse subtotal: %w", err)
	}
	if snapshot.TaxesAndFees, err = parseNullDecimal(taxes); err != nil {
		return Snapshot{}, fmt.Errorf("parse taxes and fees: %w", err)
	}
	if snapshot.TotalPrice, err = parseNullDecimal(total); err != nil {
		return Snapshot{}, fmt.Errorf("parse total price: %w", err)
	}

	return snapshot, nil
}

func parseNullDecimal(v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
