// Package lock serialises cart mutations that share a session.
package lock

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mebel/internal/common"
)

// ErrNotConfigured is returned by a Redis locker without a client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Redis is a SETNX lock shared by every replica using the same Redis.
type Redis struct {
	Client       *redis.Client
	TTL          time.Duration
	RetryBackoff time.Duration
}

// WithLock implements Locker. The lock is released even if fn fails; when it
// cannot be acquired before ctx is done, ctx.Err() is returned.
func (l Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.Client == nil {
		return ErrNotConfigured
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	token := uuid.NewString()

	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.WithoutCancel(ctx), key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

func (l Redis) release(ctx context.Context, key, token string) {
	if err := l.Client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.Client.Del(ctx, key).Err()
		}
	}
}

// Local is an in-process keyed mutex for single-replica deployments.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// WithLock implements Locker.
func (l *Local) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := l.acquire(key)
	defer l.forget(key, e)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.ch }()
	return fn(ctx)
}

func (l *Local) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = map[string]*entry{}
	}
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Local) forget(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// SessionKey is the lock key guarding a session's cart.
func SessionKey(sessionID string) string {
	return "lock:cart:" + sessionID
}

// SessionMiddleware holds the session lock for the whole request so that
// load, mutate and save happen without interleaving.
type SessionMiddleware struct {
	Locker Locker
	// Wait bounds how long a request queues for the lock.
	Wait   time.Duration
	Logger zerolog.Logger
}

// Middleware implements chi middleware.
func (m SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := common.SessionID(r.Context())
		if m.Locker == nil || !ok {
			next.ServeHTTP(w, r)
			return
		}
		wait := m.Wait
		if wait <= 0 {
			wait = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()

		served := false
		err := m.Locker.WithLock(ctx, SessionKey(id), func(context.Context) error {
			served = true
			next.ServeHTTP(w, r)
			return nil
		})
		if err == nil || served {
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			common.JSONError(w, http.StatusConflict, "SESSION_BUSY", "another request for this cart is in progress", nil)
			return
		}
		m.Logger.Warn().Err(err).Str("session_id", id).Msg("cart lock unavailable; serving unlocked")
		next.ServeHTTP(w, r)
	})
}
