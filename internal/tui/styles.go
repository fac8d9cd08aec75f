package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorText    = lipgloss.Color("#FAFAFA")
	colorMuted   = lipgloss.Color("#626262")
	colorAccent  = lipgloss.Color("#04B575")
	colorError   = lipgloss.Color("#FF5F87")
	colorBorder  = lipgloss.Color("#444444")
)

var (
	// TitleStyle is for the shell header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	// RowStyle is for library rows.
	RowStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingLeft(2)

	// SelectedRowStyle is for the highlighted library row.
	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Background(colorPrimary).
				Bold(true).
				PaddingLeft(2)

	// NewBadgeStyle marks records the store has never seen.
	NewBadgeStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	// MutedStyle is for secondary text: descriptions, timestamps, hints.
	MutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// StatusStyle is for the transient status line.
	StatusStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	// ErrorStyle is for surfaced failures.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	// FooterStyle is for the key help line.
	FooterStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	// ModalStyle is the editor overlay container.
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2)

	// FieldLabelStyle is for editor field labels.
	FieldLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(12)

	// EmptyStyle is for the library empty states.
	EmptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true).
			Padding(1, 2)
)
