package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/arverne/gitscope/internal/graph"
	"github.com/arverne/gitscope/internal/repo"
)

// laneColors maps graph color indexes onto ANSI 256-color codes: green, red,
// blue, magenta, gray, brown, orange, teal.
var laneColors = [graph.PaletteSize]uint8{40, 160, 26, 127, 245, 94, 208, 36}

const labelColor uint8 = 178

const maxSummaryLen = 80

func paint(s string, color uint8, enabled bool) string {
	if !enabled || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// renderEntries writes one line per commit, graph cells first, all rows
// padded to the widest row so the text columns line up.
func renderEntries(w io.Writer, entries []repo.Entry, colored bool) error {
	width := 1
	for _, e := range entries {
		if rw := rowWidth(e); rw > width {
			width = rw
		}
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, renderRow(e, width, colored)); err != nil {
			return err
		}
	}
	return nil
}

func rowWidth(e repo.Entry) int {
	width := e.Column + 1
	for _, l := range e.Lines {
		if l.ChildColumn+1 > width {
			width = l.ChildColumn + 1
		}
		if l.ParentColumn+1 > width {
			width = l.ParentColumn + 1
		}
	}
	return width
}

func renderRow(e repo.Entry, width int, colored bool) string {
	var sb strings.Builder
	for i, c := range graphCells(e, width) {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(paint(c.glyph, c.color, colored))
	}
	sb.WriteString("  ")
	sb.WriteString(shortHash(e.Commit.Hash))
	sb.WriteString("  ")
	sb.WriteString(e.Commit.Committer.When.Format("2006-01-02 15:04"))
	sb.WriteString("  ")
	if len(e.Labels) > 0 {
		sb.WriteString(paint("("+strings.Join(e.Labels, ", ")+")", labelColor, colored))
		sb.WriteByte(' ')
	}
	summary := e.Commit.Summary()
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen-3] + "..."
	}
	sb.WriteString(summary)
	return sb.String()
}

type cell struct {
	glyph string
	color uint8
	rank  int
}

// graphCells rasterizes a row's strands into one cell per column. The dot
// beats pass-throughs, pass-throughs beat diagonals; among equals the first
// strand keeps the cell.
func graphCells(e repo.Entry, width int) []cell {
	cells := make([]cell, width)
	for i := range cells {
		cells[i] = cell{glyph: " "}
	}
	set := func(col int, glyph string, color int, rank int) {
		if col < 0 || col >= width || rank <= cells[col].rank {
			return
		}
		cells[col] = cell{glyph: glyph, color: laneColors[color%graph.PaletteSize], rank: rank}
	}
	set(e.Column, "*", e.ColorIndex, 3)
	for _, l := range e.Lines {
		switch {
		case l.ChildColumn == l.ParentColumn:
			set(l.ChildColumn, "|", l.ColorIndex, 2)
		case l.ParentColumn == graph.NoColumn:
			// A lane closing into the dot from the side.
			if l.ChildColumn > e.Column {
				set(l.ChildColumn, "/", l.ColorIndex, 1)
			} else {
				set(l.ChildColumn, "\\", l.ColorIndex, 1)
			}
		case l.ChildColumn == graph.NoColumn:
			// A strand leaving the dot toward a parent lane.
			if l.ParentColumn > e.Column {
				set(l.ParentColumn, "\\", l.ColorIndex, 1)
			} else {
				set(l.ParentColumn, "/", l.ColorIndex, 1)
			}
		}
	}
	return cells
}
