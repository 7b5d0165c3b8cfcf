package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	log "log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteOpTimeout   = 5 * time.Second
	sqlitePollEvery   = 500 * time.Millisecond
	sqliteChangesKeep = 1000
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kv_changes (
		seq    INTEGER PRIMARY KEY AUTOINCREMENT,
		key    TEXT NOT NULL,
		origin TEXT NOT NULL
	)`,
}

// SQLite keeps keys in a single database file that several processes can
// open at once. Every write appends to a change log which watchers poll.
type SQLite struct {
	db   *sql.DB
	opts options

	mu      sync.Mutex
	closed  bool
	watch   watchers
	polling bool
	lastSeq int64
	done    chan struct{}
	wg      sync.WaitGroup

	pollEvery time.Duration
}

var _ Storage = (*SQLite)(nil)

// OpenSQLite opens the database at path and creates the schema.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite db: %v", ErrUnavailable, err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: create schema: %v", ErrUnavailable, err)
		}
	}

	s := &SQLite{db: db, opts: buildOptions(opts), done: make(chan struct{}), pollEvery: sqlitePollEvery}
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM kv_changes`).Scan(&s.lastSeq); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: read change log: %v", ErrUnavailable, err)
	}
	return s, nil
}

// Get implements Storage.
func (s *SQLite) Get(key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// Set implements Storage.
func (s *SQLite) Set(key, value string) error {
	if err := s.opts.checkQuota(value); err != nil {
		return err
	}
	return s.write(key, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().UnixMilli())
		return err
	})
}

// Remove implements Storage.
func (s *SQLite) Remove(key string) error {
	return s.write(key, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
}

func (s *SQLite) write(key string, apply func(context.Context, *sql.Tx) error) error {
	if s.isClosed() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := apply(ctx, tx); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO kv_changes (key, origin) VALUES (?, ?)`, key, s.opts.origin)
	if err != nil {
		return fmt.Errorf("%w: log change %s: %v", ErrUnavailable, key, err)
	}
	if seq, err := res.LastInsertId(); err == nil && seq%sqliteChangesKeep == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_changes WHERE seq <= ?`, seq-sqliteChangesKeep); err != nil {
			return fmt.Errorf("%w: prune change log: %v", ErrUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Watch implements Storage.
func (s *SQLite) Watch(fn func(Event)) func() {
	stop := s.watch.add(fn)

	s.mu.Lock()
	if !s.closed && !s.polling {
		s.polling = true
		s.wg.Add(1)
		go s.poll()
	}
	s.mu.Unlock()
	return stop
}

// Origin implements Storage.
func (s *SQLite) Origin() string {
	return s.opts.origin
}

// Close implements Storage.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLite) poll() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		events, err := s.changesSince()
		if err != nil {
			log.Warn("storage change poll failed", "error", err)
			continue
		}
		for _, ev := range events {
			s.watch.emit(ev)
		}
	}
}

func (s *SQLite) changesSince() ([]Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()

	s.mu.Lock()
	since := s.lastSeq
	s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT seq, key, origin FROM kv_changes WHERE seq > ? ORDER BY seq`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			seq int64
			ev  Event
		)
		if err := rows.Scan(&seq, &ev.Key, &ev.Origin); err != nil {
			return nil, err
		}
		since = seq
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastSeq = since
	s.mu.Unlock()
	return events, nil
}

func (s *SQLite) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
