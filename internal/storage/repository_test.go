package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestStoreNotConfigured(t *testing.T) {
	var s *Store
	ctx := context.Background()

	_, err := s.InsertSnapshot(ctx, Snapshot{})
	assert.True(t, errors.Is(err, ErrNotConfigured))
	_, err = s.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.GetNotificationPreference(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NotPanics(t, s.Close)
}

func TestNormalizeDSN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "postgresql+psycopg2://postgres:postgres@db:5432/cruise_prices", want: "postgres://postgres:postgres@db:5432/cruise_prices"},
		{in: "postgresql://u@h/db", want: "postgres://u@h/db"},
		{in: "postgres://u@h/db?sslmode=disable", want: "postgres://u@h/db?sslmode=disable"},
		{in: "host=localhost user=postgres dbname=x", want: "host=localhost user=postgres dbname=x"},
		{in: "mysql+pymysql://u@h/db", want: "mysql+pymysql://u@h/db"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeDSN(tc.in), tc.in)
	}
}

func TestInsertAndQuerySnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty table has no latest snapshot")

	base := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

	first, err := store.InsertSnapshot(ctx, Snapshot{
		ScrapedAt:     base,
		ItineraryName: strPtr("7 Night Western Caribbean"),
		SailStartDate: &start,
		CruiseFare:    money("2500.00"),
		Discounts:     money("-250.00"),
		TotalPrice:    money("2480.99"),
		CurrencyCode:  strPtr("USD"),
		RawPayload:    json.RawMessage(`{"raw_text":{"total_price":"$2,480.99 USD"}}`),
	})
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, [16]byte(first.ID))
	assert.False(t, first.CreatedAt.IsZero())
	assert.True(t, first.TotalPrice.Decimal.Equal(decimal.RequireFromString("2480.99")))
	assert.True(t, first.Discounts.Decimal.IsNegative())
	require.NotNil(t, first.SailStartDate)
	assert.Equal(t, "2026-02-16", first.SailStartDate.Format("2006-01-02"))

	// a failed scrape with every optional field empty is still stored
	failed, err := store.InsertSnapshot(ctx, Snapshot{ScrapedAt: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.False(t, failed.TotalPrice.Valid)
	assert.Nil(t, failed.ItineraryName)
	assert.JSONEq(t, `{}`, string(failed.RawPayload))

	middle, err := store.InsertSnapshot(ctx, Snapshot{ScrapedAt: base.Add(time.Hour), TotalPrice: money("2400")})
	require.NoError(t, err)

	recent, err := store.ListRecentSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []any{failed.ID, middle.ID, first.ID}, []any{recent[0].ID, recent[1].ID, recent[2].ID})

	latest, err = store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, recent[0].ID, latest.ID)

	capped, err := store.ListRecentSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	oldest, err := store.ListOldestSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, first.ID, oldest[0].ID)
	assert.Equal(t, middle.ID, oldest[1].ID)

	count, err := store.CountSnapshots(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestNotificationPreferenceSingleton(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pref, err := store.GetNotificationPreference(ctx)
	require.NoError(t, err)
	assert.Nil(t, pref)

	_, err = store.UpsertNotificationEmail(ctx, "first@example.com")
	require.NoError(t, err)
	second, err := store.UpsertNotificationEmail(ctx, "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", second.Email)

	pref, err = store.GetNotificationPreference(ctx)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, "second@example.com", pref.Email)

	var rows int
	require.NoError(t, store.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notification_preferences`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestTryAdvisoryLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	const key = int64(0x7465737420)

	unlock, ok, err := store.TryAdvisoryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, again, err := store.TryAdvisoryLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, again, "lock is held by another session")

	unlock()

	unlock, ok, err = store.TryAdvisoryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock()
}
