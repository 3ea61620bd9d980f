package display

import "github.com/charmbracelet/lipgloss"

// Styles is a lipgloss style set for the human-readable CLI renderer.
// Each style is a plain lipgloss.Style with no color when styling is
// disabled, so callers can apply them unconditionally.
type Styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Primary lipgloss.Style
	Bold    lipgloss.Style
	Header  lipgloss.Style
}

// NewStyles returns a Styles set. When colorEnabled is false every style is
// a no-op pass-through; the CLI passes false when NO_COLOR is set or stdout
// is not a terminal (see TerminalInfo.ColorEnabled).
func NewStyles(colorEnabled bool) Styles {
	if !colorEnabled {
		plain := lipgloss.NewStyle()
		return Styles{Success: plain, Error: plain, Warning: plain, Muted: plain, Primary: plain, Bold: plain, Header: plain}
	}
	return Styles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		Primary: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Bold:    lipgloss.NewStyle().Bold(true),
		Header:  lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// StateIcon returns a short glyph for a run/compaction/tool status.
func StateIcon(styles Styles, status string) string {
	switch status {
	case "ok", "completed", "running":
		return styles.Success.Render("✓")
	case "error", "failed":
		return styles.Error.Render("✗")
	case "cancelled", "timeout":
		return styles.Warning.Render("!")
	default:
		return styles.Muted.Render("·")
	}
}

// Table renders rows of equal column count as a simple bordered table,
// scoped to a handful of columns rather than a full progress board.
func Table(styles Styles, header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(s string, w int) string {
		for len(s) < w {
			s += " "
		}
		return s
	}

	out := styles.Header.Render(joinPadded(header, widths, pad)) + "\n"
	for _, row := range rows {
		out += joinPadded(row, widths, pad) + "\n"
	}
	return out
}

func joinPadded(cells []string, widths []int, pad func(string, int) string) string {
	line := ""
	for i, cell := range cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		if i > 0 {
			line += "  "
		}
		line += pad(cell, w)
	}
	return line
}
