// Package prefix parses the "@" prefix grammar recognized at the start of a
// search query (namespaces, folders, globs, and the fuzzy-forcing "~"
// sigil) and resolves a parsed prefix into path or pattern filters against
// a config.Config.
package prefix

import (
	"path/filepath"
	"strings"

	"github.com/galligan/pickme/internal/config"
)

// Kind identifies which prefix grammar production matched.
type Kind string

const (
	// KindNone means no prefix was recognized; Query is the whole input
	// (after fuzzy-sigil stripping).
	KindNone Kind = "none"
	// KindNamespace is "@name:rest".
	KindNamespace Kind = "namespace"
	// KindFolder is "@/relpath:rest" or "@./relpath:rest".
	KindFolder Kind = "folder"
	// KindGlob is "@pattern" where pattern contains '*' or '?'.
	KindGlob Kind = "glob"
)

// Prefix is the parsed form of a raw query.
type Prefix struct {
	Kind  Kind
	Name  string // namespace name, folder relative path, or glob pattern
	Query string // remaining search text, with any fuzzy sigil stripped
	Fuzzy bool   // "~" forced the fuzzy path
}

// Parse parses raw per the grammar:
//
//	@@rest            -> literal search for "@rest", no prefix
//	@name:rest         -> Namespace(name, rest)
//	@/relpath:rest      -> Folder(relpath, rest)
//	@./relpath:rest     -> Folder(relpath, rest)
//	@pattern (has * or ?) -> Glob(pattern), rest empty
//	@~rest             -> no prefix, fuzzy forced
//	otherwise          -> no prefix, whole input is the query
//
// A leading "~" on the resolved query text always forces fuzzy, regardless
// of which production matched.
func Parse(raw string) Prefix {
	if strings.HasPrefix(raw, "@@") {
		fuzzy, rest := stripFuzzy("@" + raw[2:])
		return Prefix{Kind: KindNone, Query: rest, Fuzzy: fuzzy}
	}

	if !strings.HasPrefix(raw, "@") {
		fuzzy, rest := stripFuzzy(raw)
		return Prefix{Kind: KindNone, Query: rest, Fuzzy: fuzzy}
	}

	body := raw[1:]

	if strings.HasPrefix(body, "~") {
		return Prefix{Kind: KindNone, Query: body[1:], Fuzzy: true}
	}

	if strings.HasPrefix(body, "/") || strings.HasPrefix(body, "./") {
		if idx := strings.IndexByte(body, ':'); idx >= 0 {
			relPath := strings.TrimPrefix(body[:idx], "./")
			fuzzy, rest := stripFuzzy(body[idx+1:])
			return Prefix{Kind: KindFolder, Name: relPath, Query: rest, Fuzzy: fuzzy}
		}
	}

	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		name := body[:idx]
		if name != "" && !strings.ContainsAny(name, "*?/") {
			fuzzy, rest := stripFuzzy(body[idx+1:])
			return Prefix{Kind: KindNamespace, Name: name, Query: rest, Fuzzy: fuzzy}
		}
	}

	if strings.ContainsAny(body, "*?") {
		return Prefix{Kind: KindGlob, Name: body}
	}

	fuzzy, rest := stripFuzzy(raw)
	return Prefix{Kind: KindNone, Query: rest, Fuzzy: fuzzy}
}

func stripFuzzy(s string) (bool, string) {
	if strings.HasPrefix(s, "~") {
		return true, s[1:]
	}
	return false, s
}

// Resolution is either a set of absolute path filters or a set of glob
// pattern filters (or both, for a glob prefix scoped to a project root).
type Resolution struct {
	PathFilters    []string
	PatternFilters []string
}

// Resolve maps a parsed Prefix to path/pattern filters. Unknown namespaces
// fail open: they resolve to projectRoot with no pattern, matching spec
// §4.C's "fail-open" rule.
func Resolve(p Prefix, projectRoot string, cfg *config.Config) Resolution {
	switch p.Kind {
	case KindNamespace:
		if cfg == nil {
			return projectRootOnly(projectRoot)
		}
		nv, ok := cfg.Namespaces[p.Name]
		if !ok || len(nv.Roots) == 0 {
			return projectRootOnly(projectRoot)
		}
		roots := make([]string, 0, len(nv.Roots))
		for _, r := range nv.Roots {
			roots = append(roots, config.ExpandHome(r))
		}
		return Resolution{PathFilters: roots}

	case KindFolder:
		return Resolution{PathFilters: []string{filepath.Join(projectRoot, p.Name)}}

	case KindGlob:
		res := Resolution{PatternFilters: []string{p.Name}}
		if projectRoot != "" {
			res.PathFilters = []string{projectRoot}
		}
		return res

	default:
		return projectRootOnly(projectRoot)
	}
}

func projectRootOnly(projectRoot string) Resolution {
	if projectRoot == "" {
		return Resolution{}
	}
	return Resolution{PathFilters: []string{projectRoot}}
}
