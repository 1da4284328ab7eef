package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	ttl        BIGINT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_tags (
	tag       TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	PRIMARY KEY (tag, cache_key)
);`

// SQLCacheService keeps entries in cache_entries and the tag to key mapping in
// cache_tags. Expired rows are removed lazily on read.
type SQLCacheService struct {
	db *sql.DB
}

func NewSQLCacheService(db *sql.DB) *SQLCacheService {
	return &SQLCacheService{db: db}
}

func (s *SQLCacheService) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, cacheSchema)
	return err
}

func (s *SQLCacheService) Set(ctx context.Context, key string, data []byte, tags []string, duration time.Duration) (err error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO cache_entries (key, data, ttl, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, ttl = EXCLUDED.ttl, created_at = EXCLUDED.created_at`,
		key, data, now.Add(duration).Unix(), now.Unix()); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cache_tags WHERE cache_key = $1`, key); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err = tx.ExecContext(ctx, `INSERT INTO cache_tags (tag, cache_key) VALUES ($1, $2)`, tag, key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	var entry CacheEntry
	err := s.db.QueryRowContext(ctx, `SELECT key, data, ttl, created_at FROM cache_entries WHERE key = $1`, key).
		Scan(&entry.Key, &entry.Data, &entry.TTL, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if entry.IsExpired() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
		return nil, nil
	}
	return entry.Data, nil
}

func (s *SQLCacheService) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key IN (SELECT cache_key FROM cache_tags WHERE tag = ANY($1))`,
		pq.Array(tags)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_tags WHERE tag = ANY($1)`, pq.Array(tags))
	return err
}
