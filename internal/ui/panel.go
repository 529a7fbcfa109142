package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
)

// Writers used by OK, Fail and Panel. Tests swap them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func OK(msg string) {
	t := Current()
	fmt.Fprintln(Stdout, t.Success.Render(t.SymDone+" "+msg))
}

func Fail(msg string) {
	fmt.Fprintln(Stderr, Current().Error.Render("✖ "+msg))
}

// Hint prints a muted follow-up line under a failure.
func Hint(msg string) {
	fmt.Fprintln(Stderr, Current().Muted.Render(msg))
}

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Frame wraps inner in the theme's border.
func Frame(inner string) string {
	t := Current()
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(inner)
}

// Panel draws a framed box using the current theme.
func Panel(lines []string) {
	fmt.Fprintln(Stdout, Frame(strings.Join(lines, "\n")))
}

// StatsHeader is the "Todos ✔ n • n Total n" line shared by ls and the TUI.
func StatsHeader(s model.Stats) string {
	t := Current()
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), s.Completed,
		t.Pending.Render(t.SymPending), s.Remaining,
		t.Accent.Render("Total"), s.Total,
	)
}

// ItemLine renders "☐ title  #id" for one todo. Long titles are cut at max
// runes; max <= 3 means no limit.
func ItemLine(it model.Item, max int) string {
	t := Current()
	title := it.Title
	if r := []rune(title); max > 3 && len(r) > max {
		title = string(r[:max-3]) + "..."
	}
	box := t.Muted.Render(t.BoxUnchecked)
	if it.Completed {
		box = t.Success.Render(t.BoxChecked)
		title = t.Done.Render(title)
	}
	return fmt.Sprintf("%s %s  %s", box, title, t.Muted.Render(fmt.Sprintf("#%d", it.ID)))
}
