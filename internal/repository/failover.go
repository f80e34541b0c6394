package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"medbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionStore serves from primary until it errors, then from fallback,
// probing primary again with exponential backoff capped at recoveryInterval.
// Keys written while primary is down are replayed onto it on recovery.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	policy    RetryPolicy
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	failures  int
	pending   sync.Map // pendingKey -> struct{}
}

type pendingKey struct {
	sessionID string
	key       string
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		policy:   DefaultRetryPolicy,
	}
}

func (r *FailoverSessionStore) markDown(err error) {
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.failures++
	failures := r.failures
	r.mu.Unlock()
	r.logger.Error().Err(err).Int("failures", failures).Msg("Primary session store failed, falling back to memory")
}

func (r *FailoverSessionStore) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary session store recovered")
	}
	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()
}

// shouldProbe reports whether primary is up, or down long enough to retry.
func (r *FailoverSessionStore) shouldProbe() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > r.policy.NextDelay(r.failures) {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

// resync copies every key written during the outage from fallback to
// primary. A primary failure marks it down again and leaves the rest pending.
func (r *FailoverSessionStore) resync(ctx context.Context) {
	replayed := 0
	r.pending.Range(func(k, _ any) bool {
		pk := k.(pendingKey)
		val, err := r.fallback.Get(ctx, pk.sessionID, pk.key)
		if err != nil {
			r.logger.Warn().Err(err).Str("session_id", pk.sessionID).Str("key", pk.key).Msg("fallback read failed during resync")
			return true
		}
		if val == nil {
			err = r.primary.Delete(ctx, pk.sessionID, pk.key)
		} else {
			err = r.primary.Set(ctx, pk.sessionID, pk.key, val)
		}
		if err != nil {
			r.markDown(err)
			return false
		}
		r.pending.Delete(pk)
		replayed++
		return true
	})
	if replayed > 0 {
		r.logger.Info().Int("keys", replayed).Msg("Replayed outage writes onto primary session store")
	}
}

func (r *FailoverSessionStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if r.shouldProbe() {
		val, err := r.primary.Get(ctx, sessionID, key)
		if err == nil {
			_, stale := r.pending.Load(pendingKey{sessionID, key})
			if r.isDown.Load() {
				r.markUp()
				r.resync(ctx)
			}
			if val != nil && !stale {
				return val, nil
			}
			// written while primary was down
			return r.fallback.Get(ctx, sessionID, key)
		}
		r.markDown(err)
	}

	return r.fallback.Get(ctx, sessionID, key)
}

func (r *FailoverSessionStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	pk := pendingKey{sessionID, key}
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, sessionID, key, value)
		if err == nil {
			r.pending.Delete(pk)
			return nil
		}
		r.markDown(err)
	}

	if err := r.fallback.Set(ctx, sessionID, key, value); err != nil {
		return err
	}
	r.pending.Store(pk, struct{}{})
	return nil
}

func (r *FailoverSessionStore) Delete(ctx context.Context, sessionID, key string) error {
	pk := pendingKey{sessionID, key}
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, sessionID, key)
		if err == nil {
			r.pending.Delete(pk)
			return r.fallback.Delete(ctx, sessionID, key)
		}
		r.markDown(err)
	}

	if err := r.fallback.Delete(ctx, sessionID, key); err != nil {
		return err
	}
	r.pending.Store(pk, struct{}{})
	return nil
}

// Ping reports the health of the primary store when it supports pings.
func (r *FailoverSessionStore) Ping(ctx context.Context) error {
	if p, ok := r.primary.(domain.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
