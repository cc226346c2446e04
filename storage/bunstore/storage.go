// Package bunstore persists session items in a SQL table through bun. It is
// meant for the local SQLite file the portal keeps next to its config.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	auth "github.com/marketsim/portal-auth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var _ auth.Storage = (*Storage)(nil)

// Entry is a single stored item
type Entry struct {
	bun.BaseModel `bun:"table:session_entries,alias:se"`
	Key           string    `bun:"key,pk" json:"key"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Storage implements auth.Storage on top of bun
type Storage struct {
	db  *bun.DB
	now func() time.Time
}

// Option customizes the storage
type Option func(*Storage)

// WithClock injects a clock, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (and creates if needed) a SQLite database at dsn
func Open(ctx context.Context, dsn string, opts ...Option) (*Storage, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// SQLite allows a single writer, keep one connection so in memory
	// databases are shared and writes serialize.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	s, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing bun database and ensures the table exists
func New(ctx context.Context, db *bun.DB, opts ...Option) (*Storage, error) {
	s := &Storage{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if _, err := db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session table: %w", err)
	}

	return s, nil
}

// DB returns the underlying database
func (s *Storage) DB() *bun.DB {
	return s.db
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	entry := new(Entry)
	err := s.db.NewSelect().
		Model(entry).
		Where("? = ?", bun.Ident("key"), key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read session entry %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// GetItems reads keys with a single query
func (s *Storage) GetItems(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var entries []Entry
	err := s.db.NewSelect().
		Model(&entries).
		Where("? IN (?)", bun.Ident("key"), bun.In(keys)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read session entries: %w", err)
	}

	for _, entry := range entries {
		out[entry.Key] = entry.Value
	}
	return out, nil
}

func (s *Storage) SetItems(ctx context.Context, items map[string]string) error {
	if len(items) == 0 {
		return nil
	}

	now := s.now()
	entries := make([]*Entry, 0, len(items))
	for k, v := range items {
		entries = append(entries, &Entry{Key: k, Value: v, UpdatedAt: now})
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&entries).
			On(`CONFLICT ("key") DO UPDATE`).
			Set(`"value" = EXCLUDED."value"`).
			Set(`"updated_at" = EXCLUDED."updated_at"`).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to write session entries: %w", err)
		}
		return nil
	})
}

func (s *Storage) RemoveItems(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*Entry)(nil)).
			Where("? IN (?)", bun.Ident("key"), bun.In(keys)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete session entries: %w", err)
		}
		return nil
	})
}
