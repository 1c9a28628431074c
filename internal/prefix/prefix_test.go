package prefix

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/galligan/pickme/internal/config"
)

func TestParse_Escape(t *testing.T) {
	p := Parse("@@foo")
	require.Equal(t, KindNone, p.Kind)
	require.Equal(t, "@foo", p.Query)
	require.False(t, p.Fuzzy)
}

func TestParse_Namespace(t *testing.T) {
	p := Parse("@docs:guide")
	require.Equal(t, KindNamespace, p.Kind)
	require.Equal(t, "docs", p.Name)
	require.Equal(t, "guide", p.Query)
}

func TestParse_Folder(t *testing.T) {
	p := Parse("@/src/components:Button")
	require.Equal(t, KindFolder, p.Kind)
	require.Equal(t, "/src/components", p.Name)
	require.Equal(t, "Button", p.Query)

	p2 := Parse("@./src/components:Button")
	require.Equal(t, KindFolder, p2.Kind)
	require.Equal(t, "src/components", p2.Name)
}

func TestParse_Glob(t *testing.T) {
	p := Parse("@*.ts")
	require.Equal(t, KindGlob, p.Kind)
	require.Equal(t, "*.ts", p.Name)
	require.Empty(t, p.Query)
}

func TestParse_TopLevelFuzzy(t *testing.T) {
	p := Parse("@~fbtsx")
	require.Equal(t, KindNone, p.Kind)
	require.True(t, p.Fuzzy)
	require.Equal(t, "fbtsx", p.Query)
}

func TestParse_LeadingTildeForcesFuzzy(t *testing.T) {
	p := Parse("~fbtsx")
	require.True(t, p.Fuzzy)
	require.Equal(t, "fbtsx", p.Query)
}

func TestParse_NoPrefix(t *testing.T) {
	p := Parse("Button")
	require.Equal(t, KindNone, p.Kind)
	require.Equal(t, "Button", p.Query)
	require.False(t, p.Fuzzy)
}

func TestResolve_UnknownNamespaceFailsOpenToProjectRoot(t *testing.T) {
	cfg := config.Default()
	res := Resolve(Prefix{Kind: KindNamespace, Name: "missing"}, "/p", cfg)
	require.Equal(t, []string{"/p"}, res.PathFilters)
	require.Empty(t, res.PatternFilters)
}

func TestResolve_Namespace(t *testing.T) {
	cfg := config.Default()
	cfg.Namespaces["docs"] = config.NamespaceValue{Roots: []string{"/docs-a", "/docs-b"}}
	res := Resolve(Prefix{Kind: KindNamespace, Name: "docs"}, "/p", cfg)
	require.Equal(t, []string{"/docs-a", "/docs-b"}, res.PathFilters)
}

func TestResolve_Folder(t *testing.T) {
	res := Resolve(Prefix{Kind: KindFolder, Name: "src/components"}, "/p", config.Default())
	require.Equal(t, []string{"/p/src/components"}, res.PathFilters)
}

func TestResolve_Glob(t *testing.T) {
	res := Resolve(Prefix{Kind: KindGlob, Name: "*.ts"}, "/p", config.Default())
	require.Equal(t, []string{"*.ts"}, res.PatternFilters)
	require.Equal(t, []string{"/p"}, res.PathFilters)
}
