package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(context.Background(), Options{Path: dbPath, SkipWALCheckpointLoop: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tinyCorpus() []FileRecord {
	return []FileRecord{
		{Path: "/p/src/components/Button.tsx", Filename: "Button.tsx", DirComponents: "src components", Root: "/p", MTime: 1, RelativePath: "src/components/Button.tsx"},
		{Path: "/p/src/components/Modal.tsx", Filename: "Modal.tsx", DirComponents: "src components", Root: "/p", MTime: 1, RelativePath: "src/components/Modal.tsx"},
		{Path: "/p/src/utils/helpers.ts", Filename: "helpers.ts", DirComponents: "src utils", Root: "/p", MTime: 1, RelativePath: "src/utils/helpers.ts"},
		{Path: "/p/README.md", Filename: "README.md", DirComponents: "", Root: "/p", MTime: 1, RelativePath: "README.md"},
	}
}

func TestUpsertFiles_FTSRowCountMatchesMeta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, tinyCorpus()))

	var metaCount, ftsCount int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT count(*) FROM files_meta").Scan(&metaCount))
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT count(*) FROM files_fts").Scan(&ftsCount))
	require.Equal(t, metaCount, ftsCount)
	require.Equal(t, 4, metaCount)
}

func TestUpsertFiles_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	batch := tinyCorpus()
	require.NoError(t, s.UpsertFiles(ctx, batch))
	require.NoError(t, s.UpsertFiles(ctx, batch))

	var metaCount int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT count(*) FROM files_meta").Scan(&metaCount))
	require.Equal(t, 4, metaCount)
}

func TestDeleteFiles_CascadesFrecency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, tinyCorpus()))
	require.NoError(t, s.UpsertFrecency(ctx, []FrecencyRecord{
		{Path: "/p/src/components/Button.tsx", GitRecency: 1, GitFrequency: 2, GitStatusBoost: 5},
	}))

	require.NoError(t, s.DeleteFiles(ctx, []string{"/p/src/components/Button.tsx"}))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT count(*) FROM frecency WHERE path = ?", "/p/src/components/Button.tsx").Scan(&count))
	require.Equal(t, 0, count)
}

func TestPruneMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, tinyCorpus()))

	require.NoError(t, s.PruneMissing(ctx, "/p", map[string]struct{}{
		"/p/src/components/Button.tsx": {},
	}))

	results, err := s.ListAll(ctx, []string{"/p"}, 100)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "/p/src/components/Button.tsx", results[0].Path)
}

func TestSearchFTS_FindsSingleMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, tinyCorpus()))

	results, err := s.SearchFTS(ctx, `"butt"*`, []string{"/p"}, 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, filepathHasSuffix(results[0].Path, "Button.tsx"))
	require.Greater(t, results[0].Score, 0.0)

	noResults, err := s.SearchFTS(ctx, `"nonexistentxyz"*`, []string{"/p"}, 50)
	require.NoError(t, err)
	require.Empty(t, noResults)
}

func TestSearchFTS_MalformedMatchReturnsFTSSyntaxError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, tinyCorpus()))

	_, err := s.SearchFTS(ctx, `"unterminated`, nil, 50)
	require.Error(t, err)
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, KindFTSSyntax, storeErr.Kind)
}

func TestListByExtension_SuffixMatchIncludesTsx(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertFiles(ctx, tinyCorpus()))

	results, err := s.ListByExtension(ctx, ".ts", []string{"/p"}, 50)
	require.NoError(t, err)
	var names []string
	for _, r := range results {
		names = append(names, r.Filename)
	}
	require.Contains(t, names, "helpers.ts")
	require.Contains(t, names, "Button.tsx")
	require.Contains(t, names, "Modal.tsx")
}

func TestGeneration_BumpIsMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	initial, err := s.ReadGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), initial)

	next, err := s.BumpGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), next)

	next2, err := s.BumpGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), next2)
}

func filepathHasSuffix(path, suffix string) bool {
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}
