package git

import (
	"fmt"
	"strings"
)

// BranchLabels maps commit hashes to the decorations shown next to them:
// branch names, "tag: v1" entries, and "HEAD -> main" first when HEAD is
// attached.
func BranchLabels(refs []Ref, headHash, headName string) map[string][]string {
	labels := map[string][]string{}
	for _, ref := range refs {
		if ref.Hash == "" || ref.Name == "" {
			continue
		}
		if ref.Kind == RefKindRemoteBranch && strings.HasSuffix(ref.Name, "/HEAD") {
			continue
		}
		// The checked-out branch is folded into the "HEAD -> name" label.
		if ref.Kind == RefKindBranch && ref.Name == headName && ref.Hash == headHash {
			continue
		}
		label := ref.Name
		if ref.Kind == RefKindTag {
			label = fmt.Sprintf("tag: %s", ref.Name)
		}
		labels[ref.Hash] = append(labels[ref.Hash], label)
	}
	if headHash != "" {
		label := "HEAD"
		if headName != "" && headName != "HEAD" {
			label = fmt.Sprintf("HEAD -> %s", headName)
		}
		labels[headHash] = append([]string{label}, labels[headHash]...)
	}
	return labels
}
