package store

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thruflo/gamecheck/internal/model"
)

// DefaultLoadingCapacity bounds how many in-flight launches are remembered.
const DefaultLoadingCapacity = 64

// LoadingTracker remembers the latest launch progress per test ID.
// Entries for tests that never report completion are evicted oldest-first
// once the capacity is reached.
type LoadingTracker struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, model.Loading]
	current string
	now     func() time.Time
}

// NewLoadingTracker creates a tracker holding at most capacity launches.
func NewLoadingTracker(capacity int) (*LoadingTracker, error) {
	if capacity <= 0 {
		capacity = DefaultLoadingCapacity
	}
	cache, err := lru.New[string, model.Loading](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create loading cache: %w", err)
	}
	return &LoadingTracker{cache: cache, now: time.Now}, nil
}

// Observe records a progress update and returns the stored value, with
// progress clamped to [0, 100]. The observed launch becomes the current one.
func (t *LoadingTracker) Observe(l model.Loading) model.Loading {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.Progress = model.ClampProgress(l.Progress)
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = t.now()
	}
	key := l.TestID
	if key == "" {
		key = l.GameID
	}
	t.cache.Add(key, l)
	t.current = key
	return l
}

// Current returns the most recently observed launch that is still tracked.
func (t *LoadingTracker) Current() (model.Loading, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == "" {
		return model.Loading{}, false
	}
	return t.cache.Peek(t.current)
}

// Done forgets a launch, typically once it completed and the collection was
// refreshed.
func (t *LoadingTracker) Done(testID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache.Remove(testID)
	if t.current == testID {
		t.current = ""
	}
}

// Active returns all tracked launches, oldest first.
func (t *LoadingTracker) Active() []model.Loading {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache.Values()
}

// Len returns the number of tracked launches.
func (t *LoadingTracker) Len() int {
	return t.cache.Len()
}

// Prune forgets launches with no update for longer than maxAge and returns
// how many were removed.
func (t *LoadingTracker) Prune(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	removed := 0
	for _, key := range t.cache.Keys() {
		l, ok := t.cache.Peek(key)
		if !ok || l.UpdatedAt.After(cutoff) {
			continue
		}
		t.cache.Remove(key)
		if t.current == key {
			t.current = ""
		}
		removed++
	}
	return removed
}
