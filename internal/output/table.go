package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const columnGap = "  "

// Table renders aligned columns for score listings. Score and delta columns
// can be right-aligned, and a footer (e.g. the run mean) is set off from the
// rows by a rule. The last column is truncated to fit the line width.
type Table struct {
	headers []string
	rows    [][]string
	footer  []string
	widths  []int
	right   map[int]bool
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visualLen(h)
	}
	return &Table{headers: headers, widths: widths, right: map[int]bool{}}
}

// AlignRight right-aligns the given zero-based columns.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow appends a row. Missing values are left blank, extra ones dropped.
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, t.fit(values))
}

// SetFooter sets the summary row printed below the data rows.
func (t *Table) SetFooter(values ...string) {
	t.footer = t.fit(values)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) fit(values []string) []string {
	row := make([]string, len(t.headers))
	copy(row, values)
	for i, cell := range row {
		t.widths[i] = max(t.widths[i], visualLen(cell))
	}
	return row
}

// Render returns the formatted table.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}
	widths := t.fitWidths()
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	if IsNoColor() {
		headerStyle = lipgloss.NewStyle()
	}

	var sb strings.Builder
	t.writeRow(&sb, widths, t.headers, func(s string) string { return headerStyle.Render(s) })
	t.writeRule(&sb, widths)
	for _, row := range t.rows {
		t.writeRow(&sb, widths, row, nil)
	}
	if t.footer != nil {
		t.writeRule(&sb, widths)
		t.writeRow(&sb, widths, t.footer, nil)
	}
	return sb.String()
}

// fitWidths shrinks the last column so a row fits in the line width, keeping
// at least 8 cells for it.
func (t *Table) fitWidths() []int {
	widths := append([]int(nil), t.widths...)
	last := len(widths) - 1
	used := 1 + len(columnGap)*last
	for _, w := range widths[:last] {
		used += w
	}
	if avail := LineWidth() - used; widths[last] > avail {
		widths[last] = max(avail, 8)
	}
	return widths
}

func (t *Table) writeRow(sb *strings.Builder, widths []int, cells []string, style func(string) string) {
	sb.WriteString(" ")
	for i, cell := range cells {
		if i > 0 {
			sb.WriteString(columnGap)
		}
		cell = truncate(cell, widths[i])
		if t.right[i] {
			cell = padLeft(cell, widths[i])
		} else if i < len(cells)-1 {
			cell = pad(cell, widths[i])
		}
		if style != nil {
			cell = style(cell)
		}
		sb.WriteString(cell)
	}
	sb.WriteString("\n")
}

func (t *Table) writeRule(sb *strings.Builder, widths []int) {
	sb.WriteString(" ")
	for i, w := range widths {
		if i > 0 {
			sb.WriteString(columnGap)
		}
		sb.WriteString(StyleMuted.Render(strings.Repeat("─", w)))
	}
	sb.WriteString("\n")
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.Render()
}

// Print writes the table to stdout.
func (t *Table) Print() {
	t.Fprint(os.Stdout)
}

// Fprint writes the table to w.
func (t *Table) Fprint(w io.Writer) {
	fmt.Fprint(w, t.Render())
}

// visualLen is the printed width of s, ignoring ANSI escape sequences.
func visualLen(s string) int {
	return lipgloss.Width(s)
}

// truncate cuts s to width printed cells, keeping ANSI sequences intact.
func truncate(s string, width int) string {
	if visualLen(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

// pad right-pads s to the given printed width.
func pad(s string, width int) string {
	if n := visualLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// padLeft left-pads s to the given printed width.
func padLeft(s string, width int) string {
	if n := visualLen(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}
