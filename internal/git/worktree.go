package git

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pmezard/go-difflib/difflib"
)

type worktreeChange struct {
	path string
	from *object.File
	to   *object.File
}

// WorktreeDiff returns a unified diff of local changes: staged compares
// HEAD against the index, unstaged compares HEAD against the working tree.
// Returns "" when there is nothing to show.
func (l *Library) WorktreeDiff(staged bool) (string, error) {
	wt, err := l.repo.Worktree()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", err
	}
	headTree, err := l.headTree()
	if err != nil && err != plumbing.ErrReferenceNotFound {
		return "", err
	}
	var idx *gitindex.Index
	if staged {
		idx, err = l.repo.Storer.Index()
		if err != nil {
			return "", err
		}
	}
	var paths []string
	for path, st := range status {
		include := false
		if staged {
			include = st.Staging != gitlib.Unmodified && st.Staging != gitlib.Untracked
		} else {
			include = st.Worktree != gitlib.Unmodified && st.Worktree != gitlib.Untracked
		}
		if include {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var changes []worktreeChange
	for _, path := range paths {
		from, err := fileFromTree(headTree, path)
		if err != nil {
			return "", err
		}
		var to *object.File
		if staged {
			to, err = fileFromIndex(idx, l.repo, path)
		} else {
			to, err = fileFromDisk(l.root, path)
		}
		if err != nil {
			return "", err
		}
		if from == nil && to == nil {
			continue
		}
		changes = append(changes, worktreeChange{path: path, from: from, to: to})
	}
	if len(changes) == 0 {
		return "", nil
	}
	return renderWorktreeDiff(changes)
}

func (l *Library) headTree() (*object.Tree, error) {
	ref, err := l.repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := l.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

func fileFromTree(tree *object.Tree, path string) (*object.File, error) {
	if tree == nil {
		return nil, nil
	}
	f, err := tree.File(path)
	if err == object.ErrFileNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func fileFromIndex(idx *gitindex.Index, repo *gitlib.Repository, path string) (*object.File, error) {
	if idx == nil {
		return nil, nil
	}
	entry, err := idx.Entry(path)
	if err == gitindex.ErrEntryNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	blob, err := object.GetBlob(repo.Storer, entry.Hash)
	if err != nil {
		return nil, err
	}
	return object.NewFile(entry.Name, entry.Mode, blob), nil
}

func fileFromDisk(root, path string) (*object.File, error) {
	if root == "" {
		return nil, fmt.Errorf("repository root not set")
	}
	file, err := os.Open(filepath.Join(root, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.BlobObject)
	if _, err := mem.Write(data); err != nil {
		return nil, err
	}
	blob, err := object.DecodeBlob(mem)
	if err != nil {
		return nil, err
	}
	mode := filemode.Regular
	if info, err := file.Stat(); err == nil {
		if m, err := filemode.NewFromOSFileMode(info.Mode()); err == nil {
			mode = m
		}
	}
	return object.NewFile(path, mode, blob), nil
}

func renderWorktreeDiff(changes []worktreeChange) (string, error) {
	var b strings.Builder
	for _, ch := range changes {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", ch.path, ch.path)

		binary, err := binaryChange(ch)
		if err != nil {
			return "", err
		}
		if binary {
			b.WriteString("(binary files differ)\n")
			continue
		}

		fromLines, err := fileLines(ch.from)
		if err != nil {
			return "", err
		}
		toLines, err := fileLines(ch.to)
		if err != nil {
			return "", err
		}
		diffText, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        fromLines,
			B:        toLines,
			FromFile: fmt.Sprintf("a/%s", ch.path),
			ToFile:   fmt.Sprintf("b/%s", ch.path),
			Context:  3,
		})
		if err != nil {
			return "", err
		}
		if diffText == "" {
			b.WriteString("(no textual changes)\n")
			continue
		}
		b.WriteString(diffText)
		if !strings.HasSuffix(diffText, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func binaryChange(ch worktreeChange) (bool, error) {
	for _, f := range []*object.File{ch.from, ch.to} {
		if f == nil {
			continue
		}
		bin, err := f.IsBinary()
		if err != nil {
			return false, err
		}
		if bin {
			return true, nil
		}
	}
	return false, nil
}

func fileLines(f *object.File) ([]string, error) {
	if f == nil {
		return []string{}, nil
	}
	content, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return difflib.SplitLines(content), nil
}
