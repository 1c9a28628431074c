// Package frecency mines a git repository for per-file recency, commit
// frequency, and working-tree status, and blends them into the frecency
// records the index store persists.
package frecency

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/galligan/pickme/internal/store"
)

// Defaults for the git log lookback window, per spec §4.E.
const (
	DefaultSinceDays = 90
	DefaultMaxCount  = 1000
	halfLifeDays     = 14.0
)

// Options configures Build.
type Options struct {
	SinceDays int
	MaxCount  int
	// Now is injectable for tests; defaults to time.Now().
	Now time.Time
}

// IsGitRepo reports whether root is inside a git working tree. A non-zero
// exit (including "git not found") is treated as "not a repo", per spec §9
// ("treat any non-zero exit as no frecency data").
func IsGitRepo(ctx context.Context, root string) bool {
	_, err := runGit(ctx, root, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// Build computes frecency records for every file touched in root's commit
// history (within the lookback window) or currently reported by `git
// status`. Returns an empty, non-error result for a non-repo or when `git
// log` fails; a failing `git status` only drops the status boosts.
// Frecency collection degrades silently per spec §7.
func Build(ctx context.Context, root string, opts Options) ([]store.FrecencyRecord, error) {
	if opts.SinceDays <= 0 {
		opts.SinceDays = DefaultSinceDays
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = DefaultMaxCount
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	if !IsGitRepo(ctx, root) {
		return nil, nil
	}

	lastCommit := map[string]int64{}
	frequency := map[string]int{}
	if err := mineLog(ctx, root, opts, lastCommit, frequency); err != nil {
		return nil, nil
	}

	boosts := map[string]float64{}
	_ = mineStatus(ctx, root, boosts)

	paths := make(map[string]struct{}, len(lastCommit)+len(boosts))
	for p := range lastCommit {
		paths[p] = struct{}{}
	}
	for p := range boosts {
		paths[p] = struct{}{}
	}

	out := make([]store.FrecencyRecord, 0, len(paths))
	for p := range paths {
		var recency float64
		if ct, ok := lastCommit[p]; ok {
			ageDays := now.Sub(time.Unix(ct, 0)).Hours() / 24
			recency = GitRecencyScore(ageDays)
		}
		out = append(out, store.FrecencyRecord{
			Path:           p,
			GitRecency:     recency,
			GitFrequency:   frequency[p],
			GitStatusBoost: boosts[p],
			LastSeen:       now.UnixMilli(),
		})
	}
	return out, nil
}

// GitRecencyScore computes exp(-ageDays / 14), clamped to [0, 1]: a 14-day
// exponential decay constant, so gitRecencyScore(0) ≈ 1.0,
// gitRecencyScore(14) ≈ 0.368, gitRecencyScore(28) ≈ 0.135.
func GitRecencyScore(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	v := math.Exp(-ageDays / halfLifeDays)
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// mineLog parses `git log --since=... --max-count=N --name-only
// --format=%ct` output: each commit's header line is its commit timestamp
// (seconds), followed by the list of files it touched, until the next
// timestamp line or EOF.
func mineLog(ctx context.Context, root string, opts Options, lastCommit map[string]int64, frequency map[string]int) error {
	since := fmt.Sprintf("%d days ago", opts.SinceDays)
	out, err := runGit(ctx, root, "log",
		"--since="+since,
		fmt.Sprintf("--max-count=%d", opts.MaxCount),
		"--name-only", "--format=%ct")
	if err != nil {
		return err
	}

	var currentCT int64 = -1
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if ct, err := strconv.ParseInt(line, 10, 64); err == nil {
			currentCT = ct
			continue
		}
		if currentCT < 0 {
			continue
		}
		abs := filepath.Join(root, line)
		if existing, ok := lastCommit[abs]; !ok || currentCT > existing {
			lastCommit[abs] = currentCT
		}
		frequency[abs]++
	}
	return scanner.Err()
}

// mineStatus parses `git status --porcelain=v1 -z` output: NUL-separated
// records, each a two-character status prefix followed by a path. Renamed
// entries carry an extra NUL-separated "old path" record immediately after,
// which is skipped.
func mineStatus(ctx context.Context, root string, boosts map[string]float64) error {
	out, err := runGit(ctx, root, "status", "--porcelain=v1", "-z")
	if err != nil {
		return err
	}
	records := strings.Split(out, "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 3 {
			continue
		}
		status := rec[:2]
		path := strings.TrimLeft(rec[2:], " ")
		if boost := statusBoost(status); boost > 0 && path != "" {
			abs := path
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(root, abs)
			}
			boosts[abs] = boost
		}
		if status[0] == 'R' || status[1] == 'R' {
			i++ // skip the rename's "old path" record
		}
	}
	return nil
}

func statusBoost(status string) float64 {
	if status == "??" {
		return 3.0
	}
	for _, c := range status {
		switch c {
		case 'M', 'A', 'D', 'R', 'C':
			return 5.0
		}
	}
	return 0
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...) //nolint:gosec // args are fixed verbs plus a caller-supplied root dir
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return stdout.String(), nil
}
