// Package graph lays out commit history for rendering. Build turns a closed
// set of commits into rows ordered newest-first, assigning each commit a
// column, a lane color, and the set of strands crossing its row. The layout
// is a pure function of the input set: identical input yields identical
// output, regardless of input order.
package graph

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PaletteSize is the number of distinct lane colors. ColorIndex values are
// always in [0, PaletteSize).
const PaletteSize = 8

// NoColumn marks the absent side of a Line.
const NoColumn = -1

// Node is one commit fed into the layout.
type Node struct {
	OID     string
	Parents []string
	When    time.Time
}

// Line is one strand crossing a row. ChildColumn is the strand's column on
// the row's upper edge, ParentColumn its column on the lower edge. A line
// with only ChildColumn set descends from the row above and ends at the
// row's dot; a line with only ParentColumn set leaves the dot toward the row
// below; a line with both set passes through the row untouched.
type Line struct {
	ChildColumn  int
	ParentColumn int
	ColorIndex   int
}

// Entry is one laid-out row. Entries are returned by value and must not be
// mutated by consumers.
type Entry struct {
	Node       Node
	Column     int
	ColorIndex int
	Lines      []Line
}

// IncompleteHistoryError reports parents referenced by the input set but not
// present in it. Layout requires a closed graph.
type IncompleteHistoryError struct {
	Missing []string
}

func (e *IncompleteHistoryError) Error() string {
	return fmt.Sprintf("incomplete history: unresolved parents: %s", strings.Join(e.Missing, ", "))
}

// Build lays out nodes newest-first by timestamp, ties broken by OID. When
// timestamps disagree with ancestry, ancestry wins: a commit is never placed
// above one of its descendants, so every lane awaiting a commit exists
// before that commit's row is laid out.
func Build(nodes []Node) ([]Entry, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	index := make(map[string]Node, len(nodes))
	ordered := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := index[n.OID]; ok {
			continue
		}
		index[n.OID] = n
		ordered = append(ordered, n)
	}

	if missing := missingParents(ordered, index); len(missing) > 0 {
		return nil, &IncompleteHistoryError{Missing: missing}
	}

	childCount := make(map[string]int, len(ordered))
	for _, n := range ordered {
		for _, p := range n.Parents {
			childCount[p]++
		}
	}

	h := &nodeHeap{}
	for _, n := range ordered {
		if childCount[n.OID] == 0 {
			heap.Push(h, n)
		}
	}

	b := &builder{}
	entries := make([]Entry, 0, len(ordered))
	for h.Len() > 0 {
		n := heap.Pop(h).(Node)
		entries = append(entries, b.row(n))
		for _, p := range n.Parents {
			childCount[p]--
			if childCount[p] == 0 {
				heap.Push(h, index[p])
			}
		}
	}
	if len(entries) != len(ordered) {
		return nil, fmt.Errorf("commit graph contains a cycle")
	}
	return entries, nil
}

func missingParents(nodes []Node, index map[string]Node) []string {
	seen := map[string]struct{}{}
	var missing []string
	for _, n := range nodes {
		for _, p := range n.Parents {
			if _, ok := index[p]; ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			missing = append(missing, p)
		}
	}
	sort.Strings(missing)
	return missing
}

// nodeHeap orders nodes newest-first, ties broken by ascending OID.
type nodeHeap []Node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if !h[i].When.Equal(h[j].When) {
		return h[i].When.After(h[j].When)
	}
	return h[i].OID < h[j].OID
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(Node)) }

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// lane is one column of the layout. A lane keeps its color for its whole
// life; await is the commit the lane runs toward.
type lane struct {
	await string
	color int
}

type builder struct {
	lanes     []*lane
	nextColor int
}

// allocLane places a new lane in the lowest free column.
func (b *builder) allocLane(await string) int {
	l := &lane{await: await, color: b.nextColor % PaletteSize}
	b.nextColor++
	for col, existing := range b.lanes {
		if existing == nil {
			b.lanes[col] = l
			return col
		}
	}
	b.lanes = append(b.lanes, l)
	return len(b.lanes) - 1
}

func (b *builder) laneAwaiting(oid string) int {
	for col, l := range b.lanes {
		if l != nil && l.await == oid {
			return col
		}
	}
	return -1
}

func (b *builder) row(n Node) Entry {
	var lines []Line
	var incoming []int
	for col, l := range b.lanes {
		if l == nil {
			continue
		}
		if l.await == n.OID {
			incoming = append(incoming, col)
			lines = append(lines, Line{ChildColumn: col, ParentColumn: NoColumn, ColorIndex: l.color})
		} else {
			lines = append(lines, Line{ChildColumn: col, ParentColumn: col, ColorIndex: l.color})
		}
	}

	var dot int
	if len(incoming) > 0 {
		// The commit lands on the leftmost lane awaiting it; the rest
		// converge into the dot and free their columns for reuse.
		dot = incoming[0]
		for _, col := range incoming[1:] {
			b.lanes[col] = nil
		}
	} else {
		dot = b.allocLane(n.OID)
	}
	color := b.lanes[dot].color

	if len(n.Parents) == 0 {
		b.lanes[dot] = nil
		return Entry{Node: n, Column: dot, ColorIndex: color, Lines: lines}
	}

	// The dot's lane continues toward the primary parent.
	b.lanes[dot].await = n.Parents[0]
	lines = append(lines, Line{ChildColumn: NoColumn, ParentColumn: dot, ColorIndex: color})
	for _, parent := range n.Parents[1:] {
		col := b.laneAwaiting(parent)
		if col == -1 {
			col = b.allocLane(parent)
		}
		lines = append(lines, Line{ChildColumn: NoColumn, ParentColumn: col, ColorIndex: b.lanes[col].color})
	}
	return Entry{Node: n, Column: dot, ColorIndex: color, Lines: lines}
}
