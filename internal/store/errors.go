package store

import (
	"errors"
	"strings"
)

// Kind classifies a store error the way callers (the orchestrator, the
// daemon) need to branch on, independent of the underlying driver's error
// type.
type Kind string

const (
	// KindDatabase is any SQLite failure not covered by a more specific kind.
	KindDatabase Kind = "database"
	// KindDatabaseLocked is a busy/locked SQLite database.
	KindDatabaseLocked Kind = "database_locked"
	// KindDatabaseCorrupt is "disk image is malformed" or similar.
	KindDatabaseCorrupt Kind = "database_corrupt"
	// KindFTSSyntax is a malformed FTS5 MATCH expression.
	KindFTSSyntax Kind = "fts_syntax"
)

// Error is the typed error every store operation returns on failure.
type Error struct {
	Kind  Kind
	Query string // the user query that produced a KindFTSSyntax error, if any
	Err   error
}

func (e *Error) Error() string {
	if e.Query != "" {
		return string(e.Kind) + ": " + e.Err.Error() + " (query: " + e.Query + ")"
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, store.ErrLocked) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel values for errors.Is comparison; Err is unused on these.
var (
	ErrLocked  = &Error{Kind: KindDatabaseLocked}
	ErrCorrupt = &Error{Kind: KindDatabaseCorrupt}
)

// wrapDBError classifies a raw driver error into a typed *Error.
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	var asErr *Error
	if errors.As(err, &asErr) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "disk image is malformed"):
		return &Error{Kind: KindDatabaseCorrupt, Err: err}
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy"):
		return &Error{Kind: KindDatabaseLocked, Err: err}
	default:
		return &Error{Kind: KindDatabase, Err: err}
	}
}

// wrapFTSError classifies an error returned by a MATCH query, attaching the
// offending user query for diagnostics.
func wrapFTSError(err error, query string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "fts5: syntax error") || strings.Contains(msg, "malformed MATCH") {
		return &Error{Kind: KindFTSSyntax, Query: query, Err: err}
	}
	return wrapDBError(err)
}
