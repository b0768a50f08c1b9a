package resilience

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

// Store wraps a snapshot store with a breaker. Caller cancellations do not
// count as failures.
type Store struct {
	Next    snapshot.Store
	Breaker *Breaker
}

// Get implements snapshot.Store.
func (s Store) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		val string
		ok  bool
	)
	err := s.do(ctx, func() error {
		var err error
		val, ok, err = s.Next.Get(ctx, key)
		return err
	})
	return val, ok, err
}

// Set implements snapshot.Store.
func (s Store) Set(ctx context.Context, key, value string) error {
	return s.do(ctx, func() error { return s.Next.Set(ctx, key, value) })
}

// Delete implements snapshot.Store.
func (s Store) Delete(ctx context.Context, key string) error {
	return s.do(ctx, func() error { return s.Next.Delete(ctx, key) })
}

// Ping probes the wrapped store directly so readiness reflects recovery
// while the breaker is still open.
func (s Store) Ping(ctx context.Context) error {
	if p, ok := s.Next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s Store) do(ctx context.Context, fn func() error) error {
	if s.Breaker == nil {
		return fn()
	}
	if !s.Breaker.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn()
	if errors.Is(err, context.Canceled) {
		s.Breaker.abandon()
		return err
	}
	s.Breaker.Report(ctx, err == nil)
	return err
}
