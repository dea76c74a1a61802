package git

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Library is the read side of a repository, backed by go-git. Mutations
// never go through here; they run the git binary via Runner so the two
// paths cannot disagree about locking.
type Library struct {
	repo *gitlib.Repository
	root string
}

func OpenLibrary(path string) (*Library, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Library{repo: repo, root: abs}, nil
}

// Head reports the current HEAD commit and symbolic name. ok is false on an
// unborn branch (fresh repository with no commits).
func (l *Library) Head() (hash string, name string, ok bool, err error) {
	ref, err := l.repo.Head()
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("resolve HEAD: %w", err)
	}
	name = "HEAD"
	if ref.Name().IsBranch() {
		name = ref.Name().Short()
	}
	return ref.Hash().String(), name, true, nil
}

// ListRefs returns all branches, remote branches, and tags, sorted by kind
// then name. Annotated tags are peeled to the commit they point at.
func (l *Library) ListRefs() ([]Ref, error) {
	iter, err := l.repo.References()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var refs []Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		short := name.Short()
		switch {
		case name.IsBranch():
			refs = append(refs, Ref{Hash: ref.Hash().String(), Kind: RefKindBranch, Name: short})
		case name.IsRemote():
			if strings.HasSuffix(short, "/HEAD") {
				return nil
			}
			refs = append(refs, Ref{Hash: ref.Hash().String(), Kind: RefKindRemoteBranch, Name: short})
		case name.IsTag():
			hash := ref.Hash()
			if peeled, ok := l.peelTagCommit(hash); ok {
				hash = peeled
			}
			refs = append(refs, Ref{Hash: hash.String(), Kind: RefKindTag, Name: short})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].Name < refs[j].Name
	})
	return refs, nil
}

// peelTagCommit resolves an annotated tag chain to the commit it targets.
// Lightweight tags point directly at a commit.
func (l *Library) peelTagCommit(hash plumbing.Hash) (plumbing.Hash, bool) {
	if _, err := l.repo.CommitObject(hash); err == nil {
		return hash, true
	}
	cur := hash
	for range 8 {
		tag, err := l.repo.TagObject(cur)
		if err != nil {
			return plumbing.ZeroHash, false
		}
		switch tag.TargetType {
		case plumbing.CommitObject:
			return tag.Target, true
		case plumbing.TagObject:
			cur = tag.Target
		default:
			return plumbing.ZeroHash, false
		}
	}
	return plumbing.ZeroHash, false
}

// Resolve turns a revision (ref name, hash, HEAD expression) into a commit
// hash.
func (l *Library) Resolve(rev string) (string, error) {
	h, err := l.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, ErrNotFound)
	}
	return h.String(), nil
}

// Commits walks ancestry from the given tips and returns every reachable
// commit exactly once, in no particular order. Tips may be ref names or
// hashes; with no tips, HEAD is used.
func (l *Library) Commits(tips ...string) ([]Commit, error) {
	if len(tips) == 0 {
		tips = []string{"HEAD"}
	}
	var pending []plumbing.Hash
	seen := map[plumbing.Hash]struct{}{}
	for _, tip := range tips {
		hash, err := l.Resolve(tip)
		if err != nil {
			return nil, err
		}
		h := plumbing.NewHash(hash)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		pending = append(pending, h)
	}

	var commits []Commit
	for len(pending) > 0 {
		h := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		c, err := l.repo.CommitObject(h)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", h, err)
		}
		commits = append(commits, commitFromObject(c))
		for _, parent := range c.ParentHashes {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			pending = append(pending, parent)
		}
	}
	return commits, nil
}

// Status reports per-file staging and worktree states plus the two
// summary flags the UI keys off.
func (l *Library) Status() (WorkingTreeState, error) {
	var res WorkingTreeState
	wt, err := l.repo.Worktree()
	if err != nil {
		return res, err
	}
	status, err := wt.Status()
	if err != nil {
		return res, err
	}
	for path, st := range status {
		if st.Staging == gitlib.Unmodified && st.Worktree == gitlib.Unmodified {
			continue
		}
		res.Files = append(res.Files, FileStatus{
			Path:     path,
			Staging:  statusByte(st.Staging),
			Worktree: statusByte(st.Worktree),
		})
		if st.Staging != gitlib.Unmodified && st.Staging != gitlib.Untracked {
			res.HasStaged = true
		}
		if st.Worktree != gitlib.Unmodified && st.Worktree != gitlib.Untracked {
			res.HasUnstaged = true
		}
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	return res, nil
}

func statusByte(c gitlib.StatusCode) byte {
	if c == gitlib.Unmodified {
		return '.'
	}
	return byte(c)
}

// CommitDiff returns the commit header and the unified diff against the
// primary parent. Root commits diff against the empty tree.
func (l *Library) CommitDiff(rev string) (string, error) {
	hash, err := l.Resolve(rev)
	if err != nil {
		return "", err
	}
	commit, err := l.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", err
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return "", err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return "", err
		}
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return "", err
	}
	header := formatCommitHeader(commitFromObject(commit))
	if len(changes) == 0 {
		return header + "\nNo file level changes.\n", nil
	}
	patch, err := changes.Patch()
	if err != nil {
		return "", err
	}
	return header + "\n" + patch.String(), nil
}

func commitFromObject(c *object.Commit) Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return Commit{
		Hash:         c.Hash.String(),
		ParentHashes: parents,
		Author:       Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:    Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		Message:      c.Message,
	}
}

func formatCommitHeader(c Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Hash)
	appendSignatureLine(&b, "Author", c.Author)
	committer := c.Committer
	if committer.Name == "" && committer.Email == "" && committer.When.IsZero() {
		committer = c.Author
	}
	appendSignatureLine(&b, "Committer", committer)
	b.WriteString("\n")
	message := strings.TrimRight(c.Message, "\n")
	if message == "" {
		b.WriteString("    (no commit message)\n")
		return b.String()
	}
	for line := range strings.SplitSeq(message, "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}

func appendSignatureLine(b *strings.Builder, label string, sig Signature) {
	fmt.Fprintf(b, "%s: %s <%s>", label, sig.Name, sig.Email)
	if !sig.When.IsZero() {
		fmt.Fprintf(b, "  %s", sig.When.Format("2006-01-02 15:04:05 -0700"))
	}
	b.WriteByte('\n')
}
