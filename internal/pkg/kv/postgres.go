package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vecinapp/feed-backend-go/internal/pkg/database"
)

// Postgres implements Store on a single kv table:
//
//	CREATE TABLE IF NOT EXISTS kv (
//	    key   TEXT PRIMARY KEY,
//	    value BYTEA NOT NULL
//	);
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a Postgres-backed store and ensures the kv table exists.
func NewPostgres(ctx context.Context, db *database.DB) (*Postgres, error) {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BYTEA NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure kv table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) ScanByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := p.db.Query(ctx, `SELECT key, value FROM kv WHERE key LIKE $1 ORDER BY key`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return entries, nil
}

// escapeLike escapes LIKE metacharacters so prefixes match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
