package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
)

// Publication is the tracking record for one article pushed onto the
// network: which event carries it and when it went out.
type Publication struct {
	Slug        string    `json:"slug"`
	EventID     string    `json:"event_id"`
	PublishedAt time.Time `json:"published_at"`
}

// Tracking persists publication records. Recording the same slug again
// overwrites the record; republishing is idempotent on the network side
// through the event's stable identifier tag.
type Tracking interface {
	GetPublication(ctx context.Context, slug string) (*Publication, error)
	RecordPublication(ctx context.Context, pub Publication) error
	Close() error
}

// SQLiteTracking is the default single-site backend.
type SQLiteTracking struct {
	db *sql.DB
}

// NewSQLiteTracking opens (and initializes) the tracking database.
// If dbPath is empty, defaults to "./data/moss-social.db".
func NewSQLiteTracking(ctx context.Context, dbPath string) (*SQLiteTracking, error) {
	if dbPath == "" {
		dbPath = "./data/moss-social.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS publications (
		slug TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		published_at DATETIME NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, err
	}

	return &SQLiteTracking{db: db}, nil
}

func (s *SQLiteTracking) GetPublication(ctx context.Context, slug string) (*Publication, error) {
	var pub Publication
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, event_id, published_at FROM publications WHERE slug = ?`, slug,
	).Scan(&pub.Slug, &pub.EventID, &pub.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

func (s *SQLiteTracking) RecordPublication(ctx context.Context, pub Publication) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publications (slug, event_id, published_at) VALUES (?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET event_id = excluded.event_id, published_at = excluded.published_at`,
		pub.Slug, pub.EventID, pub.PublishedAt)
	return err
}

func (s *SQLiteTracking) Close() error {
	return s.db.Close()
}

// PostgresTracking serves multi-site deployments sharing one database.
type PostgresTracking struct {
	pool *pgxpool.Pool
}

// NewPostgresTracking connects and initializes the schema.
func NewPostgresTracking(ctx context.Context, databaseURL string) (*PostgresTracking, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS publications (
		slug TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL
	);`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresTracking{pool: pool}, nil
}

func (s *PostgresTracking) GetPublication(ctx context.Context, slug string) (*Publication, error) {
	var pub Publication
	err := s.pool.QueryRow(ctx,
		`SELECT slug, event_id, published_at FROM publications WHERE slug = $1`, slug,
	).Scan(&pub.Slug, &pub.EventID, &pub.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

func (s *PostgresTracking) RecordPublication(ctx context.Context, pub Publication) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO publications (slug, event_id, published_at) VALUES ($1, $2, $3)
		 ON CONFLICT (slug) DO UPDATE SET event_id = excluded.event_id, published_at = excluded.published_at`,
		pub.Slug, pub.EventID, pub.PublishedAt)
	return err
}

func (s *PostgresTracking) Close() error {
	s.pool.Close()
	return nil
}

// OpenTracking picks the backend: Postgres when databaseURL is set,
// otherwise local SQLite, mirroring how deployments usually differ only by
// the presence of DATABASE_URL.
func OpenTracking(ctx context.Context, databaseURL, sqlitePath string) (Tracking, error) {
	if databaseURL != "" {
		return NewPostgresTracking(ctx, databaseURL)
	}
	return NewSQLiteTracking(ctx, sqlitePath)
}
