package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TutorialStore persists generated tutorials as opaque text keyed by string.
type TutorialStore interface {
	Put(ctx context.Context, key, content string) error
	Get(ctx context.Context, key string) (string, bool, error)
	List(ctx context.Context) ([]Entry, error)
}

// Entry is a stored tutorial's key and metadata.
type Entry struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// NewKey mints a collision-resistant storage key. The timestamp prefix keeps
// listings roughly chronological; the UUID removes collisions under
// concurrent writes.
func NewKey(now time.Time) string {
	return fmt.Sprintf("tutorial_%s_%s", now.UTC().Format("20060102T150405"), uuid.NewString())
}

// Store provides tutorial persistence backed by Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *Store) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS tutorials (
  key        TEXT PRIMARY KEY,
  content    TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS tutorials_created_at_idx
  ON tutorials (created_at DESC);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

// Put writes one tutorial. Keys are minted fresh per write, so a conflict
// only happens on a deliberate overwrite.
func (s *Store) Put(ctx context.Context, key, content string) error {
	const q = `
		INSERT INTO tutorials (key, content, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			content    = EXCLUDED.content,
			created_at = tutorials.created_at;`

	_, err := s.pool.Exec(ctx, q, key, content)
	return err
}

// Get returns the stored content for key, reporting whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var content string
	err := s.pool.QueryRow(ctx, `SELECT content FROM tutorials WHERE key = $1`, key).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return content, true, nil
}

// List returns all stored tutorials' metadata, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, length(content), created_at FROM tutorials ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Size, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
