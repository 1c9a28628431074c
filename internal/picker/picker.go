// Package picker composes the query escaper, prefix resolver, fuzzy scorer,
// and frecency builder on top of the index store into the public search,
// ensure_indexed, and refresh_index operations.
package picker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/escape"
	"github.com/galligan/pickme/internal/frecency"
	"github.com/galligan/pickme/internal/fuzzy"
	"github.com/galligan/pickme/internal/prefix"
	"github.com/galligan/pickme/internal/store"
)

// FileEntry is one file reported by a Walker.
type FileEntry struct {
	Path         string // absolute
	Filename     string
	RelativePath string
	MTime        int64
}

// WalkOptions configures a single Walker.Walk call.
type WalkOptions struct {
	MaxDepth          int
	IncludeHidden     bool
	IncludeGitignored bool
	ExcludePatterns   []string
	MaxFiles          int
	// SinceMTime, when non-zero, restricts the walk to files modified after
	// this Unix-seconds timestamp (incremental refresh mode).
	SinceMTime int64
}

// Walker is the external directory-walker collaborator: scanning the
// filesystem, applying exclude patterns and gitignore rules, and enforcing
// depth/file-count limits are all out of scope for this package (spec §1),
// so they're provided by the caller.
type Walker interface {
	Walk(ctx context.Context, root string, opts WalkOptions) ([]FileEntry, error)
}

// Picker is the search engine orchestrator. It owns no resources besides
// the store handle and walker reference passed to New.
type Picker struct {
	store  *store.Store
	walker Walker
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a Picker over an already-open Store.
func New(st *store.Store, walker Walker, cfg *config.Config, logger *slog.Logger) *Picker {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Picker{store: st, walker: walker, cfg: cfg, logger: logger}
}

// SearchOptions configures Search.
type SearchOptions struct {
	ProjectRoot string
	Limit       int
}

// Item is one ranked search result.
type Item struct {
	Path         string
	Filename     string
	RelativePath string
	Root         string
	Score        float64
}

// Search implements spec §4.F's search operation.
func (p *Picker) Search(ctx context.Context, query string, opts SearchOptions) ([]Item, error) {
	if strings.TrimSpace(query) == "" {
		return []Item{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	parsed := prefix.Parse(query)
	resolution := prefix.Resolve(parsed, opts.ProjectRoot, p.cfg)
	pathFilters := resolution.PathFilters
	if len(pathFilters) == 0 && opts.ProjectRoot != "" {
		pathFilters = []string{opts.ProjectRoot}
	}

	searchQuery := strings.TrimSpace(parsed.Query)

	if searchQuery == "" {
		switch parsed.Kind {
		case prefix.KindGlob:
			return p.globSearch(ctx, parsed.Name, pathFilters, limit)
		case prefix.KindFolder:
			searchQuery = filepath.Base(parsed.Name)
		case prefix.KindNamespace:
			searchQuery = parsed.Name
		}
	}

	if parsed.Fuzzy {
		items, err := p.fuzzySearch(ctx, searchQuery, pathFilters, limit)
		if err != nil {
			return nil, err
		}
		return applyItemPatternFilters(items, resolution.PatternFilters), nil
	}

	matchQuery := escape.BuildPrefixQuery(searchQuery)
	if matchQuery == "" {
		return []Item{}, nil
	}

	ftsResults, err := p.store.SearchFTS(ctx, matchQuery, pathFilters, limit)
	if err != nil {
		return nil, err
	}
	filtered := applyPatternFilters(ftsResults, resolution.PatternFilters)

	if len(filtered) == 0 && searchQuery != "" {
		items, err := p.fuzzySearch(ctx, searchQuery, pathFilters, limit)
		if err != nil {
			return nil, err
		}
		return applyItemPatternFilters(items, resolution.PatternFilters), nil
	}

	return toItems(filtered), nil
}

func (p *Picker) fuzzySearch(ctx context.Context, query string, pathFilters []string, limit int) ([]Item, error) {
	candidateLimit := fuzzy.CandidateLimit(limit)
	candidates, err := p.store.ListAll(ctx, pathFilters, candidateLimit)
	if err != nil {
		return nil, err
	}
	ranked := fuzzy.Rank(query, candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	items := make([]Item, len(ranked))
	for i, r := range ranked {
		items[i] = Item{Path: r.Path, Filename: r.Filename, RelativePath: r.RelativePath, Root: r.Root, Score: r.Score}
	}
	return items, nil
}

// globSearch implements spec §4.F step 4's glob-prefix handling: an
// extension-shaped pattern ("*.ts") goes through list_by_extension;
// anything else is matched in-process against every file under the path
// filters.
func (p *Picker) globSearch(ctx context.Context, pattern string, pathFilters []string, limit int) ([]Item, error) {
	if ext, ok := extensionSuffix(pattern); ok {
		results, err := p.store.ListByExtension(ctx, ext, pathFilters, limit)
		if err != nil {
			return nil, err
		}
		return toItems(results), nil
	}

	candidates, err := p.store.ListAll(ctx, pathFilters, fuzzy.CandidateLimit(limit))
	if err != nil {
		return nil, err
	}
	filtered := applyPatternFilters(candidates, []string{pattern})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return toItems(filtered), nil
}

// extensionSuffix recognizes a "*.ext" pattern with no further wildcards
// and returns ".ext".
func extensionSuffix(pattern string) (string, bool) {
	if strings.HasPrefix(pattern, "*.") {
		rest := pattern[2:]
		if rest != "" && !strings.ContainsAny(rest, "*?/") {
			return pattern[1:], true
		}
	}
	return "", false
}

// applyPatternFilters keeps only results whose relative path matches one of
// patterns. A pattern with no "/" is also tried as "**/pattern" per spec
// §4.F step 5.
func applyPatternFilters(results []store.SearchResult, patterns []string) []store.SearchResult {
	if len(patterns) == 0 {
		return results
	}
	out := make([]store.SearchResult, 0, len(results))
	for _, r := range results {
		if matchesAnyPattern(r.RelativePath, patterns) {
			out = append(out, r)
		}
	}
	return out
}

func applyItemPatternFilters(items []Item, patterns []string) []Item {
	if len(patterns) == 0 {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if matchesAnyPattern(it.RelativePath, patterns) {
			out = append(out, it)
		}
	}
	return out
}

func matchesAnyPattern(relPath string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			if ok, _ := doublestar.Match("**/"+pat, relPath); ok {
				return true
			}
		}
	}
	return false
}

func toItems(results []store.SearchResult) []Item {
	items := make([]Item, len(results))
	for i, r := range results {
		items[i] = Item{Path: r.Path, Filename: r.Filename, RelativePath: r.RelativePath, Root: r.Root, Score: r.Score}
	}
	return items
}

// IndexResult reports the outcome of EnsureIndexed.
type IndexResult struct {
	FilesIndexed int
	FilesSkipped int
	Errors       []error
}

// EnsureIndexed scans any requested root not already present in
// watched_roots (or with a null last_indexed), per spec §4.F.
func (p *Picker) EnsureIndexed(ctx context.Context, roots []string) (IndexResult, error) {
	var result IndexResult

	existing, err := p.store.GetWatchedRoots(ctx)
	if err != nil {
		return result, err
	}
	known := make(map[string]store.WatchedRoot, len(existing))
	for _, wr := range existing {
		known[wr.Root] = wr
	}

	for _, rawRoot := range roots {
		root := normalizeRoot(rawRoot)
		if wr, ok := known[root]; ok && wr.LastIndexed != nil {
			result.FilesSkipped++
			continue
		}

		n, err := p.scanRoot(ctx, root, 0)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("index %s: %w", root, err))
			continue
		}
		result.FilesIndexed += n

		if err := p.refreshFrecency(ctx, root); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("frecency %s: %w", root, err))
		}
	}
	return result, nil
}

// RefreshResult reports the outcome of RefreshIndex.
type RefreshResult struct {
	FilesIndexed int
	DurationMs   int64
	Errors       []error
}

// RefreshOptions configures RefreshIndex.
type RefreshOptions struct {
	Force bool
}

// RefreshIndex re-scans a single root incrementally (unless Force), prunes
// files no longer present, bumps the generation counter, and refreshes
// frecency, per spec §4.F.
func (p *Picker) RefreshIndex(ctx context.Context, rawRoot string, opts RefreshOptions) (RefreshResult, error) {
	root := normalizeRoot(rawRoot)
	start := time.Now()

	var since int64
	if !opts.Force {
		existing, err := p.store.GetWatchedRoots(ctx)
		if err != nil {
			return RefreshResult{}, err
		}
		for _, wr := range existing {
			if wr.Root == root && wr.LastIndexed != nil {
				since = *wr.LastIndexed / 1000
			}
		}
	}

	walkOpts := WalkOptions{
		MaxDepth:          p.cfg.Index.DepthFor(root),
		IncludeHidden:     p.cfg.Index.IncludeHidden,
		IncludeGitignored: !p.cfg.Index.Exclude.GitignoredFiles,
		ExcludePatterns:   p.cfg.Index.Exclude.Patterns,
		MaxFiles:          p.cfg.Index.Limits.MaxFilesPerRoot,
		SinceMTime:        since,
	}
	entries, err := p.walker.Walk(ctx, root, walkOpts)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("walk %s: %w", root, err)
	}

	batch := make([]store.FileRecord, len(entries))
	existingSet := make(map[string]struct{}, len(entries))
	if since > 0 {
		// An incremental walk reports only modified files; prune against a
		// full listing so unchanged files that are still on disk are kept.
		walkOpts.SinceMTime = 0
		all, err := p.walker.Walk(ctx, root, walkOpts)
		if err != nil {
			return RefreshResult{}, fmt.Errorf("walk %s: %w", root, err)
		}
		for _, e := range all {
			existingSet[e.Path] = struct{}{}
		}
	}
	for i, e := range entries {
		batch[i] = store.FileRecord{
			Path:          e.Path,
			Filename:      e.Filename,
			DirComponents: dirComponents(e.RelativePath),
			Root:          root,
			MTime:         e.MTime,
			RelativePath:  e.RelativePath,
		}
		existingSet[e.Path] = struct{}{}
	}

	if err := p.store.UpsertFiles(ctx, batch); err != nil {
		return RefreshResult{}, err
	}
	if err := p.store.PruneMissing(ctx, root, existingSet); err != nil {
		return RefreshResult{}, err
	}

	nowMs := time.Now().UnixMilli()
	count := len(entries)
	if err := p.store.UpdateWatchedRoot(ctx, store.WatchedRoot{
		Root: root, MaxDepth: p.cfg.Index.DepthFor(root), LastIndexed: &nowMs, FileCount: &count,
	}); err != nil {
		return RefreshResult{}, err
	}

	if _, err := p.store.BumpGeneration(ctx); err != nil {
		return RefreshResult{}, err
	}

	result := RefreshResult{FilesIndexed: count, DurationMs: time.Since(start).Milliseconds()}
	if err := p.refreshFrecency(ctx, root); err != nil {
		result.Errors = append(result.Errors, err)
	}
	return result, nil
}

// scanRoot performs a full (non-incremental) walk and upsert, updating the
// watched_roots row. Used by EnsureIndexed, which unlike RefreshIndex does
// not prune.
func (p *Picker) scanRoot(ctx context.Context, root string, since int64) (int, error) {
	entries, err := p.walker.Walk(ctx, root, WalkOptions{
		MaxDepth:          p.cfg.Index.DepthFor(root),
		IncludeHidden:     p.cfg.Index.IncludeHidden,
		IncludeGitignored: !p.cfg.Index.Exclude.GitignoredFiles,
		ExcludePatterns:   p.cfg.Index.Exclude.Patterns,
		MaxFiles:          p.cfg.Index.Limits.MaxFilesPerRoot,
		SinceMTime:        since,
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", root, err)
	}

	batch := make([]store.FileRecord, len(entries))
	for i, e := range entries {
		batch[i] = store.FileRecord{
			Path:          e.Path,
			Filename:      e.Filename,
			DirComponents: dirComponents(e.RelativePath),
			Root:          root,
			MTime:         e.MTime,
			RelativePath:  e.RelativePath,
		}
	}
	if err := p.store.UpsertFiles(ctx, batch); err != nil {
		return 0, err
	}

	nowMs := time.Now().UnixMilli()
	count := len(entries)
	if err := p.store.UpdateWatchedRoot(ctx, store.WatchedRoot{
		Root: root, MaxDepth: p.cfg.Index.DepthFor(root), LastIndexed: &nowMs, FileCount: &count,
	}); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *Picker) refreshFrecency(ctx context.Context, root string) error {
	if !frecency.IsGitRepo(ctx, root) {
		return nil
	}
	records, err := frecency.Build(ctx, root, frecency.Options{})
	if err != nil {
		return err
	}
	return p.store.UpsertFrecency(ctx, records)
}

// normalizeRoot cleans a root path so watched_roots never stores a
// trailing slash except for the filesystem root itself.
func normalizeRoot(root string) string {
	return filepath.Clean(root)
}

// dirComponents returns the space-joined interior path components of a
// relative path's directory, for FTS tokenization on directory names.
func dirComponents(relPath string) string {
	dir := filepath.Dir(relPath)
	if dir == "." || dir == "" || dir == string(filepath.Separator) {
		return ""
	}
	parts := strings.Split(dir, string(filepath.Separator))
	return strings.Join(parts, " ")
}

// Close releases the store handle.
func (p *Picker) Close() error {
	return p.store.Close()
}

// Generation returns the index's current generation counter, for the
// daemon's health response and invalidation watch.
func (p *Picker) Generation(ctx context.Context) (int64, error) {
	return p.store.ReadGeneration(ctx)
}

// Invalidate bumps the generation counter, signaling external watchers
// (and the daemon's own generation tracker) that the index changed.
func (p *Picker) Invalidate(ctx context.Context, _ string) (int64, error) {
	return p.store.BumpGeneration(ctx)
}

// WatchedRootCount reports how many roots the index currently tracks, for
// the daemon health response's activeWatchers/rootsLoaded fields.
func (p *Picker) WatchedRootCount(ctx context.Context) (int, error) {
	roots, err := p.store.GetWatchedRoots(ctx)
	if err != nil {
		return 0, err
	}
	return len(roots), nil
}
