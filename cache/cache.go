package cache

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// MaxKeyLength bounds cache keys in bytes.
const MaxKeyLength = 512

var (
	ErrNilCache   = errors.New("cache: nil backing cache")
	ErrInvalidKey = errors.New("cache: invalid key")
	ErrKeyTooLong = errors.New("cache: key too long")
)

// Cache is a byte store keyed by string with per-entry expiry.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Get reports a miss for expired entries and never errors.
//   - Set copies value; Get returns a copy the caller may modify.
//   - Set with ttl <= 0 is a no-op. Delete of an absent key succeeds.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects blank keys, keys holding control characters and keys
// longer than MaxKeyLength.
func ValidateKey(key string) error {
	switch {
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case strings.TrimSpace(key) == "", strings.IndexFunc(key, unicode.IsControl) >= 0:
		return ErrInvalidKey
	}
	return nil
}
