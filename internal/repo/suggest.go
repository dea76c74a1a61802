package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/arverne/gitscope/internal/git"
)

// maxSuggestDistance bounds how far a ref name may be from the typo to
// still count as "did you mean".
const maxSuggestDistance = 3

// suggestRef decorates a not-found failure for target with the closest
// existing ref name. Must run on the queue worker; it reads the ref list.
// Other errors pass through untouched.
func (r *Repository) suggestRef(err error, target string) error {
	err = git.TranslateError(err)
	if err == nil || target == "" || !errors.Is(err, git.ErrNotFound) {
		return err
	}
	refs, lerr := r.lib.ListRefs()
	if lerr != nil {
		return err
	}
	name, ok := closestRef(refs, target)
	if !ok {
		return err
	}
	return fmt.Errorf("%w (did you mean %q?)", err, name)
}

// closestRef returns the ref name nearest to target by edit distance,
// within maxSuggestDistance. Exact matches are skipped; if the name
// existed, the lookup would not have failed.
func closestRef(refs []git.Ref, target string) (string, bool) {
	lowered := strings.ToLower(target)
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, ref := range refs {
		if ref.Name == target {
			continue
		}
		dist := levenshtein.ComputeDistance(lowered, strings.ToLower(ref.Name))
		if dist < bestDist {
			best = ref.Name
			bestDist = dist
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
