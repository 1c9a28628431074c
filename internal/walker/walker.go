// Package walker provides a concrete filesystem implementation of
// picker.Walker. The search engine core treats the directory walker as an
// external collaborator (spec section 1); this package is that
// collaborator's reference implementation, wired in by cmd/pickme and
// cmd/pickmed so the CLI and daemon are actually runnable end to end.
package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/galligan/pickme/internal/picker"
)

// FS is the default directory walker: filepath.WalkDir plus exclude-pattern
// and gitignore filtering, depth limiting, and a max-file cutoff, per the
// config fields spec section 6 lists for index.* (max_depth,
// include_hidden, include_gitignored, exclude.patterns, limits).
type FS struct{}

// New returns the default filesystem walker.
func New() *FS { return &FS{} }

// Walk implements picker.Walker. It reports an error only for conditions
// that make the whole scan meaningless (root doesn't exist); per-entry
// stat failures are skipped rather than aborting the scan.
func (w *FS) Walk(ctx context.Context, root string, opts picker.WalkOptions) ([]picker.FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "walk", Path: root, Err: fs.ErrInvalid}
	}

	matcher := loadGitignore(root)
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	var entries []picker.FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if werr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if depthOf(rel) > maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		base := d.Name()
		if !opts.IncludeHidden && isHidden(base) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(rel, opts.ExcludePatterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !opts.IncludeGitignored && matcher != nil && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if opts.SinceMTime > 0 && fi.ModTime().Unix() <= opts.SinceMTime {
			return nil
		}

		entries = append(entries, picker.FileEntry{
			Path:         path,
			Filename:     base,
			RelativePath: rel,
			MTime:        fi.ModTime().Unix(),
		})
		if opts.MaxFiles > 0 && len(entries) >= opts.MaxFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll && err != context.Canceled {
		return entries, err
	}
	return entries, nil
}

// loadGitignore reads root's top-level .gitignore, if any. Nested
// .gitignore files are not merged; this mirrors the scope of the "exclude
// pattern applier" spec section 1 calls out as an external collaborator,
// not a full git-ignore implementation.
func loadGitignore(root string) *ignore.GitIgnore {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	m, err := ignore.CompileIgnoreLines(lines...)
	if err != nil {
		return nil
	}
	return m
}

func matchesAny(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			if ok, _ := doublestar.Match("**/"+pat, rel); ok {
				return true
			}
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func depthOf(rel string) int {
	if rel == "." || rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
