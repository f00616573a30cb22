// Package util renders plain and styled text for terminal output.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates s to maxWidth visual columns, adding "..." if
// truncated. Escape sequences and wide characters are measured by their
// rendered width.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to width visual columns.
func PadRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// Table lays out rows in left-aligned columns separated by two spaces.
// Cells may already be styled; alignment uses their visual width. The header
// row is rendered with header. Cells wider than maxCell are truncated, with
// zero meaning no limit.
type Table struct {
	Headers []string
	Rows    [][]string
	Header  lipgloss.Style
	MaxCell int
}

// Render returns the table as lines terminated by newlines.
func (t *Table) Render() string {
	cells := make([][]string, 0, len(t.Rows)+1)
	if len(t.Headers) > 0 {
		cells = append(cells, t.Headers)
	}
	cells = append(cells, t.Rows...)

	var widths []int
	for _, row := range cells {
		for i, cell := range row {
			if t.MaxCell > 0 {
				cell = TruncateANSI(cell, t.MaxCell)
			}
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	for r, row := range cells {
		for i, cell := range row {
			if t.MaxCell > 0 {
				cell = TruncateANSI(cell, t.MaxCell)
			}
			if r == 0 && len(t.Headers) > 0 {
				cell = t.Header.Render(cell)
			}
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(PadRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
