package translate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/text/language"
)

type pairKey struct {
	src, tgt string
}

// Cache maps language pairs to live sessions so repeated elements skip the
// session-creation cost. It is owned by one pipeline for its lifetime and
// is never persisted.
type Cache struct {
	tr Translator

	mu       sync.Mutex
	sessions map[pairKey]Session
}

// NewCache creates a session cache over a Translator.
func NewCache(tr Translator) *Cache {
	return &Cache{tr: tr, sessions: make(map[pairKey]Session)}
}

// Get returns the cached session for (src, tgt), creating one on miss.
// Returns ErrUnsupportedPair when the host reports the pair unavailable.
//
// The lock is not held across the availability check or session creation
// (both are suspension points); concurrent misses may create the session
// twice and the last writer wins. Creating a session twice is wasteful,
// not unsafe; the loser is closed.
func (c *Cache) Get(ctx context.Context, src, tgt language.Tag) (Session, error) {
	key := pairKey{src.String(), tgt.String()}

	c.mu.Lock()
	if s, ok := c.sessions[key]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	avail, err := c.tr.Availability(ctx, src, tgt)
	if err != nil {
		return nil, fmt.Errorf("translate: availability %s→%s: %w", key.src, key.tgt, err)
	}
	if avail != Available {
		return nil, ErrUnsupportedPair
	}

	s, err := c.tr.NewSession(ctx, src, tgt)
	if err != nil {
		return nil, fmt.Errorf("translate: create session %s→%s: %w", key.src, key.tgt, err)
	}

	c.mu.Lock()
	if prev, ok := c.sessions[key]; ok {
		c.mu.Unlock()
		s.Close()
		return prev, nil
	}
	c.sessions[key] = s
	c.mu.Unlock()
	return s, nil
}

// Close closes every cached session and empties the cache.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, s := range c.sessions {
		s.Close()
		delete(c.sessions, k)
	}
}

// Len reports the number of live sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
