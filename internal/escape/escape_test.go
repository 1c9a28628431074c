package escape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPrefixQuery_LiteralExamples(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"simple path", "src/comp", `"src" "comp"*`},
		{"hyphenated filename", "my-component.tsx", `"my" "component" "tsx"*`},
		{"quoted phrase has no trailing star", `"my component"`, `"my component"`},
		{"empty query", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, BuildPrefixQuery(tc.input))
		})
	}
}

func TestBuildPrefixQuery_InnerQuoteClosesPhrase(t *testing.T) {
	// The second quote closes the first phrase, so "hi" becomes an unquoted
	// token and the trailing empty phrase emits nothing.
	got := BuildPrefixQuery(`"say "hi""`)
	require.Equal(t, `"say" "hi"*`, got)
}

func TestBuildPrefixQuery_NonEmptyResultEndsInStarOrQuote(t *testing.T) {
	inputs := []string{"a", "a.b.c", "---", "foo bar baz"}
	for _, in := range inputs {
		got := BuildPrefixQuery(in)
		if got == "" {
			continue
		}
		require.True(t, got[len(got)-1] == '*' || got[len(got)-1] == '"', "query %q produced malformed expression %q", in, got)
	}
}

func TestBuildPrefixQuery_OnlySeparatorsYieldsEmpty(t *testing.T) {
	require.Equal(t, "", BuildPrefixQuery("---"))
	require.Equal(t, "", BuildPrefixQuery("   "))
}
