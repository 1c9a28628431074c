package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galligan/pickme/internal/store"
)

func TestMultiTokenFuzzy_NotSubsequenceIsNegative(t *testing.T) {
	require.Less(t, MultiTokenFuzzy("zzz", "Button.tsx"), 0.0)
}

func TestMultiTokenFuzzy_SubsequenceIsNonNegative(t *testing.T) {
	require.GreaterOrEqual(t, MultiTokenFuzzy("btn", "Button.tsx"), 0.0)
}

func TestMultiTokenFuzzy_FooBarTsxFallback(t *testing.T) {
	// Per the spec's literal fuzzy-fallback scenario: "fbtsx" matches
	// FooBar.tsx via f at position 0 (boundary), b inside "foobar" (no
	// boundary bonus: camel-case humps are not boundaries), and "tsx"
	// contiguous after the '.' boundary.
	score := MultiTokenFuzzy("fbtsx", "FooBar.tsx")
	require.GreaterOrEqual(t, score, 0.0)
}

func TestCandidateLimit_Clamped(t *testing.T) {
	require.Equal(t, 500, CandidateLimit(1))
	require.Equal(t, 5000, CandidateLimit(1000))
	require.Equal(t, 2500, CandidateLimit(50))
}

func TestRank_DropsNegativeAndSortsDescending(t *testing.T) {
	candidates := []store.SearchResult{
		{Path: "/p/src/components/FooBar.tsx", Filename: "FooBar.tsx", RelativePath: "src/components/FooBar.tsx", Score: 1},
		{Path: "/p/README.md", Filename: "README.md", RelativePath: "README.md", Score: 1},
	}
	ranked := Rank("fbtsx", candidates)
	require.Len(t, ranked, 1)
	require.Equal(t, "/p/src/components/FooBar.tsx", ranked[0].Path)
}

func TestRank_TiesBrokenByRelativePath(t *testing.T) {
	candidates := []store.SearchResult{
		{Path: "/p/b.ts", Filename: "b.ts", RelativePath: "b.ts", Score: 0},
		{Path: "/p/a.ts", Filename: "a.ts", RelativePath: "a.ts", Score: 0},
	}
	ranked := Rank("ts", candidates)
	require.Len(t, ranked, 2)
	require.Equal(t, "a.ts", ranked[0].RelativePath)
	require.Equal(t, "b.ts", ranked[1].RelativePath)
}
