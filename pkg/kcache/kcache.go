// Package kcache stores generated kernel source in SQLite, keyed by the
// mangled kernel name and the processor it was generated for.
package kcache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Key identifies a cached kernel
type Key struct {
	Name      string // mangled kernel name
	Processor string
}

func (k Key) String() string {
	return k.Name + "@" + k.Processor
}

// Entry is one generated kernel
type Entry struct {
	Key
	Source    string
	Cost      float64
	Scheduler string
	RunID     string // id of the session that generated the entry
	CreatedAt time.Time
}

// Cache is a kernel source cache backed by a SQLite database
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database at path.
//
// The database runs in WAL mode with a single connection, so concurrent
// generators serialize their writes instead of failing with SQLITE_BUSY.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kernel cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to kernel cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply kernel cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the entry for key. The boolean is false if there is none.
func (c *Cache) Get(ctx context.Context, key Key) (Entry, bool, error) {
	e := Entry{Key: key}
	var created int64
	err := c.db.QueryRowContext(ctx,
		`SELECT source, cost, scheduler, run_id, created_at
		 FROM kernels WHERE name = ? AND processor = ?`,
		key.Name, key.Processor,
	).Scan(&e.Source, &e.Cost, &e.Scheduler, &e.RunID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	return e, true, nil
}

// Put stores e, replacing any entry with the same key.
// A zero CreatedAt is set to the current time.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if e.Name == "" || e.Processor == "" {
		return fmt.Errorf("put: entry %q has an incomplete key", e.Key)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO kernels (name, processor, source, cost, scheduler, run_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name, processor) DO UPDATE SET
		   source = excluded.source,
		   cost = excluded.cost,
		   scheduler = excluded.scheduler,
		   run_id = excluded.run_id,
		   created_at = excluded.created_at`,
		e.Name, e.Processor, e.Source, e.Cost, e.Scheduler, e.RunID, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Key, err)
	}
	return nil
}

// Names lists the cached kernel names for a processor in name order
func (c *Cache) Names(ctx context.Context, processor string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM kernels WHERE processor = ? ORDER BY name`, processor)
	if err != nil {
		return nil, fmt.Errorf("list kernels: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list kernels: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
