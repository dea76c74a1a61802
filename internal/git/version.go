package git

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Minimum supported git version. Keep this aligned with the flags and
// subcommands used across the project (e.g. "git restore --staged").
const MinGitVersion = "2.23.0"

var minGit = semver.MustParse(MinGitVersion)

// parseGitVersionOutput extracts the version from `git --version` output.
// Tolerates vendor decorations:
//   - "git version 2.44.0"
//   - "git version 2.39.3 (Apple Git-146)"
//   - "git version 2.39.3.windows.1"
func parseGitVersionOutput(out string) (*semver.Version, error) {
	s := strings.TrimSpace(out)
	if idx := strings.Index(s, "git version"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("git version"):])
	}
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no version in %q", strings.TrimSpace(out))
	}
	s = s[start:]
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' {
			end++
			continue
		}
		break
	}
	parts := strings.Split(strings.Trim(s[:end], "."), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, fmt.Errorf("parse git version %q: %w", strings.TrimSpace(out), err)
	}
	return v, nil
}

func validateGitVersionOutput(out string) error {
	v, err := parseGitVersionOutput(out)
	if err != nil {
		return err
	}
	if v.LessThan(minGit) {
		return fmt.Errorf("git %s is too old; gitscope requires git >= %s", v, MinGitVersion)
	}
	return nil
}

var (
	versionOnce  sync.Once
	versionCheck error
)

// CheckVersion verifies the runner's git binary meets MinGitVersion. The
// result is cached for the process; every repository uses the same host
// binary.
func CheckVersion(ctx context.Context, r *Runner) error {
	versionOnce.Do(func() {
		out, err := r.Run(ctx, []string{"--version"}, nil)
		if err != nil {
			versionCheck = fmt.Errorf("git --version: %w", err)
			return
		}
		versionCheck = validateGitVersionOutput(string(out.Stdout))
	})
	return versionCheck
}
