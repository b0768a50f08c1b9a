// Package snapshot persists small JSON documents under string keys.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPersistence wraps every failure to read, write or decode a snapshot.
var ErrPersistence = errors.New("snapshot: persistence failure")

// Store is a string-keyed snapshot store.
type Store interface {
	// Get reports whether key exists alongside its raw value.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the snapshot at key into dst. It reports whether the key existed.
// Decode failures are reported wrapped in ErrPersistence together with found=true.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	if s == nil || key == "" {
		return false, nil
	}
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %v", ErrPersistence, key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("%w: decode %s: %v", ErrPersistence, key, err)
	}
	return true, nil
}

// SetJSON serialises v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	if s == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, key, err)
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrPersistence, key, err)
	}
	return nil
}
