// Package fuzzy implements the sub-sequence fuzzy scorer used as a fallback
// when the full-text search path yields no results, or when the caller
// forces it with a leading "~".
package fuzzy

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/galligan/pickme/internal/store"
)

// boundaryBytes are the hay characters that, when immediately preceding a
// match, mark it as a word-boundary match worth a bonus.
const boundaryBytes = "/_-. "

// tokenFuzzy scores a single needle against hay, both already lower-cased.
// Returns -1 if needle is not a subsequence of hay.
func tokenFuzzy(needle, hay string) float64 {
	if needle == "" {
		return 0
	}
	hb := []byte(hay)
	lastIndex := -1
	streak := 0
	score := 0.0

	for i := 0; i < len(needle); i++ {
		ch := needle[i]
		from := lastIndex + 1
		idx := indexByteFrom(hb, ch, from)
		if idx == -1 {
			return -1
		}

		boundary := idx == 0
		if !boundary && idx > 0 && strings.IndexByte(boundaryBytes, hb[idx-1]) >= 0 {
			boundary = true
		}

		if idx == lastIndex+1 {
			streak++
		} else {
			streak = 1
		}
		streakBonus := streak
		if streakBonus > 5 {
			streakBonus = 5
		}

		score += 1
		if boundary {
			score += 3
		}
		score += float64(streakBonus)

		lastIndex = idx
	}

	score += math.Max(0, 20-float64(len(hay))/10)
	score += math.Max(0, 10-float64(lastIndex)/10)
	return score
}

func indexByteFrom(hay []byte, ch byte, from int) int {
	if from >= len(hay) {
		return -1
	}
	if from < 0 {
		from = 0
	}
	idx := bytes.IndexByte(hay[from:], ch)
	if idx == -1 {
		return -1
	}
	return idx + from
}

// MultiTokenFuzzy splits query on whitespace and sums each token's
// tokenFuzzy score against hay. If any token fails to match, the total is
// -1. An empty query (no tokens) also returns -1.
func MultiTokenFuzzy(query, hay string) float64 {
	tokens := strings.Fields(strings.ToLower(query))
	hayLower := strings.ToLower(hay)
	if len(tokens) == 0 {
		return -1
	}
	total := 0.0
	for _, tok := range tokens {
		s := tokenFuzzy(tok, hayLower)
		if s < 0 {
			return -1
		}
		total += s
	}
	return total
}

// CandidateLimit clamps limit*50 into [500, 5000], the size of the
// candidate set pulled from the index store before scoring.
func CandidateLimit(limit int) int {
	v := limit * 50
	if v < 500 {
		v = 500
	}
	if v > 5000 {
		v = 5000
	}
	return v
}

// Result is one scored candidate.
type Result struct {
	Path         string
	Filename     string
	RelativePath string
	Root         string
	Score        float64
}

// Rank scores every candidate against query and returns the survivors
// (score >= 0) sorted by score descending, ties broken by relative_path
// ascending.
func Rank(query string, candidates []store.SearchResult) []Result {
	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		relScore := MultiTokenFuzzy(query, c.RelativePath)
		fileScore := MultiTokenFuzzy(query, c.Filename)
		chosen := relScore
		if weighted := 1.2 * fileScore; weighted > chosen {
			chosen = weighted
		}
		if chosen < 0 {
			continue
		}
		out = append(out, Result{
			Path:         c.Path,
			Filename:     c.Filename,
			RelativePath: c.RelativePath,
			Root:         c.Root,
			Score:        chosen + 0.2*c.Score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RelativePath < out[j].RelativePath
	})
	return out
}
