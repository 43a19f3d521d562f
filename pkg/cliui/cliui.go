// Package cliui provides reusable terminal UI helpers for mnemo CLI commands.
package cliui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	// KeyStyle renders field labels in status output.
	KeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// ValueStyle renders field values in status output.
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	// ModeHealthyStyle renders the read-write mode.
	ModeHealthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)

	// ModeDegradedStyle renders write-only (degraded) mode.
	ModeDegradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// ModeOffStyle renders the off mode.
	ModeOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// DimStyle renders secondary information.
	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
