package picker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galligan/pickme/internal/config"
	"github.com/galligan/pickme/internal/store"
)

type fakeWalker struct {
	entries map[string][]FileEntry
}

func (w *fakeWalker) Walk(_ context.Context, root string, _ WalkOptions) ([]FileEntry, error) {
	return w.entries[root], nil
}

func newTinyPicker(t *testing.T) (*Picker, *fakeWalker) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	st, err := store.Open(context.Background(), store.Options{Path: dbPath, SkipWALCheckpointLoop: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	walker := &fakeWalker{entries: map[string][]FileEntry{
		"/p": {
			{Path: "/p/src/components/Button.tsx", Filename: "Button.tsx", RelativePath: "src/components/Button.tsx", MTime: 1},
			{Path: "/p/src/components/Modal.tsx", Filename: "Modal.tsx", RelativePath: "src/components/Modal.tsx", MTime: 1},
			{Path: "/p/src/utils/helpers.ts", Filename: "helpers.ts", RelativePath: "src/utils/helpers.ts", MTime: 1},
			{Path: "/p/README.md", Filename: "README.md", RelativePath: "README.md", MTime: 1},
		},
	}}

	p := New(st, walker, config.Default(), nil)
	_, err = p.EnsureIndexed(context.Background(), []string{"/p"})
	require.NoError(t, err)
	return p, walker
}

func TestSearch_FindsExactMatch(t *testing.T) {
	p, _ := newTinyPicker(t)
	items, err := p.Search(context.Background(), "Butt", SearchOptions{ProjectRoot: "/p"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, len(items[0].Path) > 0 && items[0].Path[len(items[0].Path)-len("Button.tsx"):] == "Button.tsx")
	require.Greater(t, items[0].Score, 0.0)
}

func TestSearch_NoMatchReturnsEmpty(t *testing.T) {
	p, _ := newTinyPicker(t)
	items, err := p.Search(context.Background(), "nonexistentxyz", SearchOptions{ProjectRoot: "/p"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSearch_GlobPrefixMatchesTsAndTsx(t *testing.T) {
	p, _ := newTinyPicker(t)
	items, err := p.Search(context.Background(), "@*.ts", SearchOptions{ProjectRoot: "/p"})
	require.NoError(t, err)
	var names []string
	for _, it := range items {
		names = append(names, it.Filename)
	}
	require.Contains(t, names, "helpers.ts")
	require.Contains(t, names, "Button.tsx")
}

func TestSearch_EmptyQueryReturnsEmpty(t *testing.T) {
	p, _ := newTinyPicker(t)
	items, err := p.Search(context.Background(), "   ", SearchOptions{ProjectRoot: "/p"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSearch_FuzzyFallbackWhenFTSEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")
	st, err := store.Open(context.Background(), store.Options{Path: dbPath, SkipWALCheckpointLoop: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	walker := &fakeWalker{entries: map[string][]FileEntry{
		"/p": {
			{Path: "/p/src/components/FooBar.tsx", Filename: "FooBar.tsx", RelativePath: "src/components/FooBar.tsx", MTime: 1},
		},
	}}
	p := New(st, walker, config.Default(), nil)
	_, err = p.EnsureIndexed(context.Background(), []string{"/p"})
	require.NoError(t, err)

	items, err := p.Search(context.Background(), "fbtsx", SearchOptions{ProjectRoot: "/p"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "/p/src/components/FooBar.tsx", items[0].Path)
}

func TestRefreshIndex_PrunesDeletedFiles(t *testing.T) {
	p, walker := newTinyPicker(t)

	walker.entries["/p"] = []FileEntry{
		{Path: "/p/src/components/Button.tsx", Filename: "Button.tsx", RelativePath: "src/components/Button.tsx", MTime: 2},
	}
	result, err := p.RefreshIndex(context.Background(), "/p", RefreshOptions{Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesIndexed)

	items, err := p.Search(context.Background(), "@*", SearchOptions{ProjectRoot: "/p"})
	require.NoError(t, err)
	require.NotContains(t, itemPaths(items), "/p/README.md")
}

func itemPaths(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Path
	}
	return out
}
