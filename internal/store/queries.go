package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FileRecord is one row to upsert into files_meta.
type FileRecord struct {
	Path          string
	Filename      string
	DirComponents string
	Root          string
	MTime         int64
	RelativePath  string // empty means NULL
}

// FrecencyRecord is one row to upsert into frecency.
type FrecencyRecord struct {
	Path           string
	GitRecency     float64
	GitFrequency   int
	GitStatusBoost float64
	LastSeen       int64
}

// WatchedRoot is one row of watched_roots.
type WatchedRoot struct {
	Root        string
	MaxDepth    int
	LastIndexed *int64
	FileCount   *int
}

// SearchResult is one ranked row returned by SearchFTS, ListByExtension, or
// ListAll.
type SearchResult struct {
	Path         string
	Filename     string
	RelativePath string
	Root         string
	Score        float64
}

// UpsertFiles inserts or replaces a batch of file records in a single
// transaction. An empty batch is a no-op. Either every record is visible
// after commit or none is.
func (s *Store) UpsertFiles(ctx context.Context, batch []FileRecord) error {
	if len(batch) == 0 {
		return nil
	}
	// Deferred, not BEGIN IMMEDIATE: safe only because Open sets
	// SetMaxOpenConns(1), so this connection is the sole writer and no other
	// transaction can sneak in between the deferred begin and the first write.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(fmt.Errorf("begin upsert_files: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // no-op if already committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files_meta(path, filename, dir_components, root, mtime, relative_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			dir_components = excluded.dir_components,
			root = excluded.root,
			mtime = excluded.mtime,
			relative_path = excluded.relative_path
	`)
	if err != nil {
		return wrapDBError(fmt.Errorf("prepare upsert_files: %w", err))
	}
	defer stmt.Close()

	for _, f := range batch {
		var relPath interface{}
		if f.RelativePath != "" {
			relPath = f.RelativePath
		}
		if _, err := stmt.ExecContext(ctx, f.Path, f.Filename, f.DirComponents, f.Root, f.MTime, relPath); err != nil {
			return wrapDBError(fmt.Errorf("upsert_files: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError(fmt.Errorf("commit upsert_files: %w", err))
	}
	return nil
}

// DeleteFiles removes files_meta rows (and cascades to frecency) for the
// given absolute paths, in a single transaction. An empty batch is a no-op.
func (s *Store) DeleteFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	// Deferred begin is fine here too: see UpsertFiles.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(fmt.Errorf("begin delete_files: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM files_meta WHERE path = ?`)
	if err != nil {
		return wrapDBError(fmt.Errorf("prepare delete_files: %w", err))
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return wrapDBError(fmt.Errorf("delete_files: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError(fmt.Errorf("commit delete_files: %w", err))
	}
	return nil
}

// PruneMissing deletes any files_meta row under root whose path is not in
// existingSet. Used after an incremental scan to drop files that no longer
// exist on disk.
func (s *Store) PruneMissing(ctx context.Context, root string, existingSet map[string]struct{}) error {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files_meta WHERE root = ?`, root)
	if err != nil {
		return wrapDBError(fmt.Errorf("prune_missing select: %w", err))
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return wrapDBError(fmt.Errorf("prune_missing scan: %w", err))
		}
		if _, ok := existingSet[p]; !ok {
			stale = append(stale, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return wrapDBError(fmt.Errorf("prune_missing rows: %w", err))
	}
	rows.Close()

	return s.DeleteFiles(ctx, stale)
}

// UpsertFrecency inserts or replaces a batch of frecency records in a single
// transaction.
func (s *Store) UpsertFrecency(ctx context.Context, batch []FrecencyRecord) error {
	if len(batch) == 0 {
		return nil
	}
	// Deferred begin is fine here too: see UpsertFiles.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError(fmt.Errorf("begin upsert_frecency: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frecency(path, git_recency, git_frequency, git_status_boost, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			git_recency = excluded.git_recency,
			git_frequency = excluded.git_frequency,
			git_status_boost = excluded.git_status_boost,
			last_seen = excluded.last_seen
	`)
	if err != nil {
		return wrapDBError(fmt.Errorf("prepare upsert_frecency: %w", err))
	}
	defer stmt.Close()

	for _, f := range batch {
		if _, err := stmt.ExecContext(ctx, f.Path, f.GitRecency, f.GitFrequency, f.GitStatusBoost, f.LastSeen); err != nil {
			// A FrecencyRecord referencing a path with no FileMeta is simply
			// skipped by the foreign key constraint failing; that path was
			// likely pruned mid-rebuild.
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapDBError(fmt.Errorf("commit upsert_frecency: %w", err))
	}
	return nil
}

// GetWatchedRoots returns every configured root's tracking row.
func (s *Store) GetWatchedRoots(ctx context.Context) ([]WatchedRoot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT root, max_depth, last_indexed, file_count FROM watched_roots`)
	if err != nil {
		return nil, wrapDBError(fmt.Errorf("get_watched_roots: %w", err))
	}
	defer rows.Close()

	var out []WatchedRoot
	for rows.Next() {
		var wr WatchedRoot
		var lastIndexed sql.NullInt64
		var fileCount sql.NullInt64
		if err := rows.Scan(&wr.Root, &wr.MaxDepth, &lastIndexed, &fileCount); err != nil {
			return nil, wrapDBError(fmt.Errorf("get_watched_roots scan: %w", err))
		}
		if lastIndexed.Valid {
			v := lastIndexed.Int64
			wr.LastIndexed = &v
		}
		if fileCount.Valid {
			v := int(fileCount.Int64)
			wr.FileCount = &v
		}
		out = append(out, wr)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(fmt.Errorf("get_watched_roots rows: %w", err))
	}
	return out, nil
}

// UpdateWatchedRoot upserts one watched_roots row.
func (s *Store) UpdateWatchedRoot(ctx context.Context, r WatchedRoot) error {
	var lastIndexed, fileCount interface{}
	if r.LastIndexed != nil {
		lastIndexed = *r.LastIndexed
	}
	if r.FileCount != nil {
		fileCount = *r.FileCount
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watched_roots(root, max_depth, last_indexed, file_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(root) DO UPDATE SET
			max_depth = excluded.max_depth,
			last_indexed = excluded.last_indexed,
			file_count = excluded.file_count
	`, r.Root, r.MaxDepth, lastIndexed, fileCount)
	if err != nil {
		return wrapDBError(fmt.Errorf("update_watched_root: %w", err))
	}
	return nil
}

// pathFilterClause builds `(m.path LIKE ? ESCAPE '\\' OR ...)` and its bind
// args for the given absolute-path prefixes. Returns "", nil when filters is
// empty (no clause needed).
func pathFilterClause(filters []string) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(filters))
	args := make([]interface{}, 0, len(filters))
	for _, f := range filters {
		clauses = append(clauses, `m.path LIKE ? ESCAPE '\'`)
		args = append(args, escapeLikePrefix(f)+"%")
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

// escapeLikePrefix escapes backslash, percent, and underscore for use as a
// LIKE pattern prefix with ESCAPE '\'.
func escapeLikePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const scoreExpr = `-bm25(files_fts) + coalesce(fr.git_recency, 0) + coalesce(fr.git_frequency, 0) * 0.1 + coalesce(fr.git_status_boost, 0)`
const scoreExprNoBM25 = `coalesce(fr.git_recency, 0) + coalesce(fr.git_frequency, 0) * 0.1 + coalesce(fr.git_status_boost, 0)`

// SearchFTS runs a full-text search. query must already be an escaped FTS5
// MATCH expression (see package escape); an empty query must never reach
// here, and callers must guard against it, since FTS5 rejects an empty
// MATCH.
func (s *Store) SearchFTS(ctx context.Context, query string, pathFilters []string, limit int) ([]SearchResult, error) {
	clause, args := pathFilterClause(pathFilters)
	where := "files_fts MATCH ?"
	queryArgs := append([]interface{}{query}, args...)
	if clause != "" {
		where += " AND " + clause
	}

	sqlText := fmt.Sprintf(`
		SELECT m.path, m.filename, m.relative_path, m.root, %s AS score
		FROM files_fts
		JOIN files_meta m ON m.rowid = files_fts.rowid
		LEFT JOIN frecency fr ON fr.path = m.path
		WHERE %s
		ORDER BY score DESC
		LIMIT ?
	`, scoreExpr, where)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, queryArgs...)
	if err != nil {
		return nil, wrapFTSError(err, query)
	}
	defer rows.Close()
	return scanResults(rows)
}

// ListByExtension lists files whose filename has a dot-segment starting with
// ext (ext stripped of its leading dot), so "@*.ts" also matches ".tsx"
// filenames by design — see spec's open question on @*.ext semantics —
// ranked by frecency only.
func (s *Store) ListByExtension(ctx context.Context, ext string, pathFilters []string, limit int) ([]SearchResult, error) {
	clause, args := pathFilterClause(pathFilters)
	stem := strings.TrimPrefix(ext, ".")
	where := `m.filename LIKE '%.' || ? || '%' ESCAPE '\'`
	queryArgs := append([]interface{}{escapeLikePrefix(stem)}, args...)
	if clause != "" {
		where += " AND " + clause
	}

	sqlText := fmt.Sprintf(`
		SELECT m.path, m.filename, m.relative_path, m.root, %s AS score
		FROM files_meta m
		LEFT JOIN frecency fr ON fr.path = m.path
		WHERE %s
		ORDER BY score DESC, m.filename ASC
		LIMIT ?
	`, scoreExprNoBM25, where)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, queryArgs...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// ListAll lists every file under the given path filters, ranked by frecency
// only. Used as the candidate set for the fuzzy scorer.
func (s *Store) ListAll(ctx context.Context, pathFilters []string, limit int) ([]SearchResult, error) {
	clause, args := pathFilterClause(pathFilters)
	where := "1=1"
	queryArgs := args
	if clause != "" {
		where = clause
	}

	sqlText := fmt.Sprintf(`
		SELECT m.path, m.filename, m.relative_path, m.root, %s AS score
		FROM files_meta m
		LEFT JOIN frecency fr ON fr.path = m.path
		WHERE %s
		ORDER BY score DESC, m.filename ASC
		LIMIT ?
	`, scoreExprNoBM25, where)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, queryArgs...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var relPath sql.NullString
		if err := rows.Scan(&r.Path, &r.Filename, &relPath, &r.Root, &r.Score); err != nil {
			return nil, wrapDBError(fmt.Errorf("scan result: %w", err))
		}
		if relPath.Valid {
			r.RelativePath = relPath.String
		} else {
			r.RelativePath = r.Path
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(fmt.Errorf("result rows: %w", err))
	}
	return out, nil
}

// ReadGeneration returns the current generation counter (SQLite's
// user_version pragma).
func (s *Store) ReadGeneration(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	if err != nil {
		return 0, wrapDBError(fmt.Errorf("read_generation: %w", err))
	}
	return v, nil
}

// BumpGeneration increments and returns the new generation counter. Wraps
// to 0 on int32 overflow per the pragma's storage width, which is
// acceptable given how rarely this is bumped.
func (s *Store) BumpGeneration(ctx context.Context) (int64, error) {
	current, err := s.ReadGeneration(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if next > 0x7fffffff {
		next = 0
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", next)); err != nil {
		return 0, wrapDBError(fmt.Errorf("bump_generation: %w", err))
	}
	return next, nil
}
