package crawler

import (
	"context"
	"sync"
	"time"

	"cruise-price-tracker/internal/storage"
)

// StaticAcquirer replays a fixed sequence of snapshots. Once the sequence is exhausted the
// last entry repeats. A non-nil Err is returned from every call instead.
type StaticAcquirer struct {
	Snapshots []storage.Snapshot
	Err       error
	Now       func() time.Time

	mu    sync.Mutex
	calls int
}

// Acquire returns the next snapshot stamped with the current time.
func (s *StaticAcquirer) Acquire(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.Err != nil {
		return storage.Snapshot{}, s.Err
	}

	var snapshot storage.Snapshot
	if n := len(s.Snapshots); n > 0 {
		idx := s.calls - 1
		if idx >= n {
			idx = n - 1
		}
		snapshot = s.Snapshots[idx]
	}
	if snapshot.ScrapedAt.IsZero() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		snapshot.ScrapedAt = now().UTC()
	}
	return snapshot, nil
}

// Calls reports how many times Acquire ran.
func (s *StaticAcquirer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ Acquirer = (*StaticAcquirer)(nil)
