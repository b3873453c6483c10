package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cruise-price-tracker/internal/storage"
)

// memStore keeps snapshots and the preference in memory.
type memStore struct {
	mu        sync.Mutex
	snapshots []storage.Snapshot
	pref      *storage.NotificationPreference

	insertErr   error
	latestErr   error
	upserts     int
	lockHeld    bool
	lockCalls   int
	unlockCalls int
}

func (m *memStore) InsertSnapshot(_ context.Context, snap storage.Snapshot) (storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return storage.Snapshot{}, m.insertErr
	}
	snap.ID = uuid.New()
	snap.CreatedAt = time.Now().UTC()
	if len(snap.RawPayload) == 0 {
		snap.RawPayload = []byte("{}")
	}
	m.snapshots = append(m.snapshots, snap)
	return snap, nil
}

func (m *memStore) sorted(desc bool) []storage.Snapshot {
	out := append([]storage.Snapshot(nil), m.snapshots...)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].ScrapedAt.After(out[j].ScrapedAt)
		}
		return out[i].ScrapedAt.Before(out[j].ScrapedAt)
	})
	return out
}

func (m *memStore) LatestSnapshot(context.Context) (*storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	if len(m.snapshots) == 0 {
		return nil, nil
	}
	latest := m.sorted(true)[0]
	return &latest, nil
}

func (m *memStore) ListRecentSnapshots(_ context.Context, limit int) ([]storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return head(m.sorted(true), limit), nil
}

func (m *memStore) ListOldestSnapshots(_ context.Context, limit int) ([]storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return head(m.sorted(false), limit), nil
}

func (m *memStore) GetNotificationPreference(context.Context) (*storage.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pref == nil {
		return nil, nil
	}
	p := *m.pref
	return &p, nil
}

func (m *memStore) UpsertNotificationEmail(_ context.Context, email string) (storage.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.pref = &storage.NotificationPreference{Email: email, UpdatedAt: time.Now().UTC()}
	return *m.pref, nil
}

func (m *memStore) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	if m.lockHeld {
		return nil, false, nil
	}
	return func() {
		m.mu.Lock()
		m.unlockCalls++
		m.mu.Unlock()
	}, true, nil
}

func head(s []storage.Snapshot, limit int) []storage.Snapshot {
	if limit < len(s) {
		return s[:limit]
	}
	return s
}

type notifyCall struct {
	previous storage.Snapshot
	current  storage.Snapshot
}

type fakeNotifier struct {
	mu      sync.Mutex
	changes []notifyCall
	tests   []string
	err     error
	testErr error
}

func (f *fakeNotifier) NotifyChange(_ context.Context, previous, current storage.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, notifyCall{previous: previous, current: current})
	return f.err
}

func (f *fakeNotifier) SendTest(_ context.Context, recipient string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests = append(f.tests, recipient)
	return f.testErr
}

var errProvider = errors.New("provider unavailable")

func snapAt(at time.Time, total string) storage.Snapshot {
	s := storage.Snapshot{ScrapedAt: at}
	if total != "" {
		s.TotalPrice = decimal.NewNullDecimal(decimal.RequireFromString(total))
	}
	return s
}
