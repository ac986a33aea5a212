// Package ui holds the terminal styling and prompt helpers shared by
// the td commands.
package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// colorEnabled reports whether the terminal supports color output.
func colorEnabled() bool {
	return termenv.DefaultOutput().Profile != termenv.Ascii
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

// Accent renders s in the accent color for IDs and selections.
func Accent(s string) string { return render(accentStyle, s) }

// Pass renders s as a success.
func Pass(s string) string { return render(passStyle, s) }

// Warn renders s as a warning.
func Warn(s string) string { return render(warnStyle, s) }

// Fail renders s as a failure.
func Fail(s string) string { return render(failStyle, s) }

// Dim renders s de-emphasized, for notes and metadata.
func Dim(s string) string { return render(dimStyle, s) }

// Header renders a section heading.
func Header(s string) string { return render(headerStyle, s) }

// Checkbox renders a checklist marker.
func Checkbox(completed bool) string {
	if completed {
		return Pass("[x]")
	}
	return "[ ]"
}

// Confirm shows a blocking yes/no prompt and returns the answer.
// A declined or aborted prompt returns false.
func Confirm(title, description string) bool {
	var confirmed bool
	prompt := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(prompt)).Run(); err != nil {
		return false
	}
	return confirmed
}

// ProgressBar renders a fixed-width progress bar for a 0-100 percent.
func ProgressBar(percent, width int) string {
	if width <= 0 {
		width = 20
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := width * percent / 100
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return fmt.Sprintf("%s %d%%", Accent(bar), percent)
}
