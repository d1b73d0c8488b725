// Package memory provides the in-process fixed-window rate limit store.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"survey-public-api/internal/core/domain"

	"github.com/rs/zerolog"
)

const defaultShards = 64

// RateLimitStore keeps fixed-window counters in sharded maps.
// Each key's read-check-increment runs under its shard's mutex.
// Counters do not survive a restart.
type RateLimitStore struct {
	shards []rateLimitShard
	now    func() time.Time
	log    zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

type rateLimitShard struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// Option configures a RateLimitStore.
type Option func(*RateLimitStore)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *RateLimitStore) { s.now = now }
}

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(s *RateLimitStore) {
		if n > 0 {
			s.shards = make([]rateLimitShard, n)
		}
	}
}

// NewRateLimitStore creates an empty store. Call StartSweeper to bound memory.
func NewRateLimitStore(log zerolog.Logger, opts ...Option) *RateLimitStore {
	s := &RateLimitStore{
		shards: make([]rateLimitShard, defaultShards),
		now:    time.Now,
		log:    log,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*windowEntry)
	}
	return s
}

// Peek reports the window state for key without consuming quota.
func (s *RateLimitStore) Peek(_ context.Context, key string, policy domain.TierPolicy) (domain.RateLimitDecision, error) {
	shard := s.shardFor(key)
	now := s.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.entries[key]
	if !ok || !now.Before(e.resetAt) {
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests,
			ResetAt:   now.Add(policy.Window),
		}, nil
	}
	return decision(e, policy), nil
}

// Increment admits one request for key if the window has quota left.
// A denied request does not change the count.
func (s *RateLimitStore) Increment(_ context.Context, key string, policy domain.TierPolicy) (domain.RateLimitDecision, error) {
	shard := s.shardFor(key)
	now := s.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &windowEntry{resetAt: now.Add(policy.Window)}
		shard.entries[key] = e
	}

	if e.count >= policy.MaxRequests {
		d := decision(e, policy)
		d.Allowed = false
		return d, nil
	}

	e.count++
	d := decision(e, policy)
	d.Allowed = true
	return d, nil
}

func decision(e *windowEntry, policy domain.TierPolicy) domain.RateLimitDecision {
	remaining := policy.MaxRequests - e.count
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   remaining > 0,
		Limit:     policy.MaxRequests,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}

// Sweep removes expired windows and returns how many were dropped.
func (s *RateLimitStore) Sweep() int {
	now := s.now()
	removed := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, e := range shard.entries {
			if !now.Before(e.resetAt) {
				delete(shard.entries, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked windows.
func (s *RateLimitStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].entries)
		s.shards[i].mu.Unlock()
	}
	return n
}

// StartSweeper runs Sweep every interval until Stop is called.
func (s *RateLimitStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.log.Debug().Int("removed", n).Msg("ratelimit: swept expired windows")
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to exit. Safe to call more than once
// and when the sweeper was never started.
func (s *RateLimitStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func (s *RateLimitStore) shardFor(key string) *rateLimitShard {
	if len(s.shards) <= 1 {
		return &s.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%uint32(len(s.shards))]
}
