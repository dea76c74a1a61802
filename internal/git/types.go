package git

import (
	"strings"
	"time"
)

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

type Commit struct {
	Hash         string
	ParentHashes []string
	Author       Signature
	Committer    Signature
	Message      string
}

// Summary returns the first line of the commit message, trimmed.
func (c Commit) Summary() string {
	first := strings.SplitN(strings.TrimSpace(c.Message), "\n", 2)[0]
	return strings.TrimSpace(first)
}

type RefKind uint8

const (
	RefKindBranch RefKind = iota
	RefKindRemoteBranch
	RefKindTag
)

func (k RefKind) String() string {
	switch k {
	case RefKindBranch:
		return "branch"
	case RefKindRemoteBranch:
		return "remote"
	case RefKindTag:
		return "tag"
	}
	return "unknown"
}

type Ref struct {
	Hash string
	Kind RefKind
	Name string // short name: main, origin/main, v1
}

// Stash is one entry of the stash stack.
type Stash struct {
	Name    string // stash@{0}
	Hash    string
	Message string
}

// FileStatus carries the porcelain status codes for one path. Codes follow
// git's short format: 'M', 'A', 'D', 'R', 'C', 'U', '?' and '.' for
// unmodified.
type FileStatus struct {
	Path     string
	Staging  byte
	Worktree byte
}

type WorkingTreeState struct {
	Files       []FileStatus
	HasStaged   bool
	HasUnstaged bool
}

// Output is the captured result of one external git invocation.
type Output struct {
	Stdout   []byte
	ExitCode int
}
