package git

import (
	"context"
	"fmt"
	"strings"
)

// ListStashes reads the stash stack through the git binary; the library
// backend has no reflog access. Newest first, matching git stash list.
func ListStashes(ctx context.Context, r *Runner) ([]Stash, error) {
	out, err := r.Run(ctx, []string{"stash", "list", "--format=%H%x00%gd%x00%gs"}, nil)
	if err != nil {
		return nil, err
	}
	return parseStashList(string(out.Stdout))
}

func parseStashList(out string) ([]Stash, error) {
	var stashes []Stash
	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unexpected stash list line: %q", rawLine)
		}
		hash := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])
		if hash == "" || name == "" {
			return nil, fmt.Errorf("unexpected stash list line: %q", rawLine)
		}
		stashes = append(stashes, Stash{Name: name, Hash: hash, Message: parts[2]})
	}
	return stashes, nil
}
