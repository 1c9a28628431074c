// Package store implements the index store: the SQLite-backed file-metadata
// table, full-text index, frecency table, and watched-roots table described
// in the search engine's data model, along with the ranked search queries
// built on top of them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// walCheckpointInterval is how often a long-lived daemon checkpoints the WAL
// file so it doesn't grow unbounded over a multi-day run.
const walCheckpointInterval = 5 * time.Minute

// Store wraps the SQLite connection backing the index: file metadata, full
// text search, frecency, and watched roots. Several Stores may have the
// database file open at once (the CLI fallback and the daemon); SQLite's
// writer lock only serializes their writes.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	stmts     map[string]*sql.Stmt
	stmtMu    sync.RWMutex
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
	closeErr  error
	path      string
}

// Options configures Open.
type Options struct {
	// Path is the SQLite file path. Required.
	Path string
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
	// SkipWALCheckpointLoop disables the background checkpoint ticker,
	// useful for short-lived CLI-fallback opens that close immediately.
	SkipWALCheckpointLoop bool
}

// Open opens (creating if necessary) the SQLite database at opts.Path,
// applies pragmas, and initializes or recovers the schema. The caller must
// call Close when done.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, &Error{Kind: KindDatabase, Err: fmt.Errorf("store: Path is required")}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, wrapDBError(fmt.Errorf("create index dir: %w", err))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", opts.Path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapDBError(fmt.Errorf("open sqlite: %w", err))
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, wrapDBError(fmt.Errorf("ping sqlite: %w", err))
	}

	if err := initSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	s := &Store{
		db:        sqlDB,
		logger:    logger,
		stmts:     make(map[string]*sql.Stmt),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		path:      opts.Path,
	}
	if opts.SkipWALCheckpointLoop {
		close(s.stoppedCh)
	} else {
		go s.walCheckpointLoop()
	}
	return s, nil
}

// initSchema runs the DDL, and recovers a missing FTS table if schema_meta
// is already present (the store was interrupted mid-init or the FTS table
// was otherwise dropped).
func initSchema(ctx context.Context, db *sql.DB) error {
	var hasSchemaMeta int
	err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='schema_meta'`).Scan(&hasSchemaMeta)
	if err != nil {
		return wrapDBError(fmt.Errorf("check schema_meta: %w", err))
	}

	if hasSchemaMeta == 0 {
		if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
			return wrapDBError(fmt.Errorf("create schema: %w", err))
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_meta(key, value) VALUES ('version', '1')`); err != nil {
			return wrapDBError(fmt.Errorf("seed schema_meta: %w", err))
		}
		return nil
	}

	var hasFTS int
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='files_fts'`).Scan(&hasFTS)
	if err != nil {
		return wrapDBError(fmt.Errorf("check files_fts: %w", err))
	}
	if hasFTS == 0 {
		// Recovery path: files_fts is missing even though files_meta exists.
		// Recreate the virtual table and triggers; content='files_meta' means
		// no backfill INSERTs are needed, FTS5 reads through to the content
		// table directly once rebuilt via the 'rebuild' command.
		if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
			return wrapDBError(fmt.Errorf("recreate fts schema: %w", err))
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO files_fts(files_fts) VALUES ('rebuild')`); err != nil {
			return wrapDBError(fmt.Errorf("rebuild fts: %w", err))
		}
	}

	var storedVersion string
	err = db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'version'`).Scan(&storedVersion)
	if err != nil && err != sql.ErrNoRows {
		return wrapDBError(fmt.Errorf("read schema version: %w", err))
	}
	// No version is currently above SchemaVersion; the upgrade path is a
	// no-op placeholder for future schema changes.
	return nil
}

// Close closes all prepared statements, stops the checkpoint loop, does a
// final WAL checkpoint, and closes the database. Safe to call more than
// once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			<-s.stoppedCh
		}

		s.stmtMu.Lock()
		for _, stmt := range s.stmts {
			stmt.Close()
		}
		s.stmts = nil
		s.stmtMu.Unlock()

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

func (s *Store) walCheckpointLoop() {
	defer close(s.stoppedCh)
	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				s.logger.Warn("wal checkpoint failed", "error", err)
			}
		}
	}
}

// prepare returns a cached prepared statement, preparing and caching it on
// first use.
func (s *Store) prepare(ctx context.Context, name, query string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	if s.stmts == nil {
		s.stmtMu.RUnlock()
		return nil, wrapDBError(fmt.Errorf("store is closed"))
	}
	if stmt, ok := s.stmts[name]; ok {
		s.stmtMu.RUnlock()
		return stmt, nil
	}
	s.stmtMu.RUnlock()

	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if s.stmts == nil {
		return nil, wrapDBError(fmt.Errorf("store is closed"))
	}
	if stmt, ok := s.stmts[name]; ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, wrapDBError(fmt.Errorf("prepare %s: %w", name, err))
	}
	s.stmts[name] = stmt
	return stmt, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
