package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	sectionTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	footerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warningStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	boxStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)

	buttonStyle        = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("#CCCCCC")).Background(lipgloss.Color("#333333"))
	buttonFocusedStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF6B6B"))
	tabStyle           = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#888888"))
	tabActiveStyle     = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Underline(true)

	labelStyleReady   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleBlocked = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleDefault = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)
