package statuscache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var ErrNoFetcher = errors.New("status cache has no fetcher")

// DefaultTTL is how long an observation is served without a refresh.
const DefaultTTL = 10 * time.Second

// Fetcher resolves whether a session currently has an active draft.
type Fetcher func(ctx context.Context, sessionID string) (bool, error)

// Entry is the last observation for a session.
type Entry struct {
	Active     bool
	ObservedAt time.Time
}

// Cache maps session ids to their last-known draft-active flag.
type Cache struct {
	clock clockwork.Clock
	ttl   time.Duration
	fetch Fetcher

	mu      sync.RWMutex
	entries map[string]Entry

	group singleflight.Group
}

func New(clock clockwork.Clock, ttl time.Duration, fetch Fetcher) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		clock:   clock,
		ttl:     ttl,
		fetch:   fetch,
		entries: make(map[string]Entry),
	}
}

// Peek returns the cached entry and whether it is still fresh. It never fetches.
func (c *Cache) Peek(sessionID string) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return entry, c.fresh(entry)
}

// Get returns the cached flag when fresh, otherwise refreshes it. Concurrent
// refreshes for the same session share one fetch.
func (c *Cache) Get(ctx context.Context, sessionID string) (bool, error) {
	if entry, fresh := c.Peek(sessionID); fresh {
		return entry.Active, nil
	}
	return c.Refresh(ctx, sessionID)
}

// Refresh fetches the flag regardless of age and stores the result.
func (c *Cache) Refresh(ctx context.Context, sessionID string) (bool, error) {
	if c.fetch == nil {
		return false, ErrNoFetcher
	}

	v, err, _ := c.group.Do(sessionID, func() (any, error) {
		active, err := c.fetch(ctx, sessionID)
		if err != nil {
			return false, err
		}
		c.Set(sessionID, active)
		return active, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to refresh status for %s: %w", sessionID, err)
	}
	return v.(bool), nil
}

// Watch returns the cached flag immediately. When the entry is missing or
// stale a background refresh runs and onUpdate receives the new value.
func (c *Cache) Watch(ctx context.Context, sessionID string, onUpdate func(sessionID string, active bool)) (active bool, known bool) {
	entry, fresh := c.Peek(sessionID)
	if fresh {
		return entry.Active, true
	}

	go func() {
		v, err := c.Refresh(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("status refresh failed")
			return
		}
		if onUpdate != nil {
			onUpdate(sessionID, v)
		}
	}()

	return entry.Active, !entry.ObservedAt.IsZero()
}

// Set records an observation, typically from a pushed draft snapshot.
func (c *Cache) Set(sessionID string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = Entry{Active: active, ObservedAt: c.clock.Now()}
}

// Invalidate drops the entry so the next read refreshes.
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Prune removes every stale entry.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.entries {
		if !c.fresh(entry) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) fresh(entry Entry) bool {
	return c.clock.Since(entry.ObservedAt) < c.ttl
}
