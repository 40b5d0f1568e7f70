package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
)

// responseCache implements driven.ResponseCache.
type responseCache struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

var _ driven.ResponseCache = (*responseCache)(nil)

// CacheKey hashes a request key. Cached rows never hold the raw url,
// which may carry query credentials.
func CacheKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached body and whether it was found and fresh.
func (c *responseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT body, stored_at FROM response_cache WHERE key = ?
	`, CacheKey(key))

	var body []byte
	var storedAt sql.NullString
	if err := row.Scan(&body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(parseNullableTime(storedAt)) > c.ttl {
		return nil, false, nil
	}
	return body, true, nil
}

// Put stores a body, replacing an older entry.
func (c *responseCache) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO response_cache (key, body, stored_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			stored_at = excluded.stored_at
	`, CacheKey(key), body, formatNullableTime(c.now()))
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *responseCache) Clear(ctx context.Context) error {
	if _, err := c.store.db.ExecContext(ctx, "DELETE FROM response_cache"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
