package main

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/thoth-viewer/thoth/internal/match"
)

const defaultWidth = 100

var (
	indexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")).Bold(true)
	matchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#1a1b26")).Background(lipgloss.Color("#e0af68"))
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// initColorProfile picks the lipgloss colour profile. THOTH_COLOR overrides
// detection: truecolor, 256, 16, none. Output that is not a terminal gets no
// colour.
func initColorProfile(out io.Writer) {
	if colorEnv := os.Getenv("THOTH_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if !isTerminal(out) || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or defaultWidth when w is not a
// terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// renderPreview fits a hit preview into width display cells, trimming the
// leading and trailing context before the match itself.
func renderPreview(p match.Preview, width int) string {
	before, hit, after := p.Before, p.Match, p.After
	if width <= 0 {
		width = defaultWidth
	}

	if runewidth.StringWidth(hit) >= width {
		return matchStyle.Render(runewidth.Truncate(hit, width, "…"))
	}
	room := width - runewidth.StringWidth(hit)
	if w := runewidth.StringWidth(after); w > room/2 {
		after = runewidth.Truncate(after, room/2, "…")
	}
	room -= runewidth.StringWidth(after)
	if runewidth.StringWidth(before) > room {
		before = truncateLeft(before, room)
	}
	return before + matchStyle.Render(hit) + after
}

// truncateLeft keeps the last width cells of s, marking the cut with "…".
func truncateLeft(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	rs := []rune(s)
	w := 1
	i := len(rs)
	for i > 0 {
		rw := runewidth.RuneWidth(rs[i-1])
		if w+rw > width {
			break
		}
		w += rw
		i--
	}
	return "…" + string(rs[i:])
}

// highlightRaw styles every fragment range in raw. Overlapping ranges are
// merged into the earlier one.
func highlightRaw(raw []byte, frags []match.Fragment) string {
	ranges := make([]match.ByteRange, 0, len(frags))
	for _, f := range frags {
		if !f.Range.Empty() && int(f.Range.End) <= len(raw) {
			ranges = append(ranges, f.Range)
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	var b strings.Builder
	pos := 0
	for _, r := range ranges {
		start, end := int(r.Start), int(r.End)
		if end <= pos {
			continue
		}
		if start < pos {
			start = pos
		}
		b.Write(raw[pos:start])
		b.WriteString(matchStyle.Render(string(raw[start:end])))
		pos = end
	}
	b.Write(raw[pos:])
	return b.String()
}
