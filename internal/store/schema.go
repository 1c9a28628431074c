package store

// SchemaVersion is the current supported schema version. A stored version
// lower than this triggers the (currently no-op) upgrade path.
const SchemaVersion = 1

// schemaDDL creates the base tables, the FTS5 shadow table, and its sync
// triggers. Every statement is idempotent (IF NOT EXISTS) so it is safe to
// run against an already-initialized database.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS files_meta (
  rowid          INTEGER PRIMARY KEY AUTOINCREMENT,
  path           TEXT NOT NULL UNIQUE,
  filename       TEXT NOT NULL,
  dir_components TEXT NOT NULL,
  root           TEXT NOT NULL,
  mtime          INTEGER NOT NULL,
  relative_path  TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_meta_root ON files_meta(root);

CREATE TABLE IF NOT EXISTS frecency (
  path             TEXT PRIMARY KEY REFERENCES files_meta(path) ON DELETE CASCADE,
  git_recency      REAL NOT NULL DEFAULT 0,
  git_frequency    INTEGER NOT NULL DEFAULT 0,
  git_status_boost REAL NOT NULL DEFAULT 0,
  last_seen        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS watched_roots (
  root         TEXT PRIMARY KEY,
  max_depth    INTEGER NOT NULL DEFAULT 10,
  last_indexed INTEGER,
  file_count   INTEGER
);

CREATE TABLE IF NOT EXISTS schema_meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
  path,
  filename,
  dir_components,
  content='files_meta',
  content_rowid='rowid',
  tokenize='unicode61 remove_diacritics 1'
);

CREATE TRIGGER IF NOT EXISTS files_meta_ai AFTER INSERT ON files_meta
BEGIN
  INSERT INTO files_fts(rowid, path, filename, dir_components)
  VALUES (NEW.rowid, NEW.path, NEW.filename, NEW.dir_components);
END;

CREATE TRIGGER IF NOT EXISTS files_meta_ad AFTER DELETE ON files_meta
BEGIN
  INSERT INTO files_fts(files_fts, rowid, path, filename, dir_components)
  VALUES ('delete', OLD.rowid, OLD.path, OLD.filename, OLD.dir_components);
END;

CREATE TRIGGER IF NOT EXISTS files_meta_au AFTER UPDATE ON files_meta
BEGIN
  INSERT INTO files_fts(files_fts, rowid, path, filename, dir_components)
  VALUES ('delete', OLD.rowid, OLD.path, OLD.filename, OLD.dir_components);
  INSERT INTO files_fts(rowid, path, filename, dir_components)
  VALUES (NEW.rowid, NEW.path, NEW.filename, NEW.dir_components);
END;
`

// allTables lists every base table for the recovery/validation path.
var allTables = []string{"files_meta", "frecency", "watched_roots", "schema_meta", "files_fts"}

// allTriggers lists every trigger for the recovery/validation path.
var allTriggers = []string{"files_meta_ai", "files_meta_ad", "files_meta_au"}
