package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed       = lipgloss.Color("#ff5555")
	colorGreen     = lipgloss.Color("#50fa7b")
	colorYellow    = lipgloss.Color("#f1fa8c")
	colorBlue      = lipgloss.Color("#8be9fd")
	colorPurple    = lipgloss.Color("#bd93f9")
	colorDim       = lipgloss.Color("#6272a4")
	colorBgLight   = lipgloss.Color("#343746")
	colorFg        = lipgloss.Color("#f8f8f2")
	colorOrange    = lipgloss.Color("#ffb86c")
	colorBorder    = lipgloss.Color("#44475a")
	colorHighlight = lipgloss.Color("#44475a")
)

// Style definitions.
var (
	// Dashboard header
	headerRepoStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	headerTitleStyle = lipgloss.NewStyle().
				Foreground(colorPurple).
				Bold(true)

	headerDescStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	breadcrumbStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	// Panels
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	// List rows
	itemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	itemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorFg).
				Background(colorHighlight).
				Bold(true)

	itemCosmeticStyle = lipgloss.NewStyle().
				Foreground(colorDim).
				Italic(true)

	itemPendingStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	itemErrorStyle = lipgloss.NewStyle().
			Foreground(colorOrange)

	heatStyle = lipgloss.NewStyle().
			Foreground(colorOrange)

	stagedMarkStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	// Symbol relations
	relationStyles = map[string]lipgloss.Style{
		"added":     lipgloss.NewStyle().Foreground(colorGreen),
		"deleted":   lipgloss.NewStyle().Foreground(colorRed),
		"modified":  lipgloss.NewStyle().Foreground(colorYellow),
		"moved":     lipgloss.NewStyle().Foreground(colorBlue),
		"renamed":   lipgloss.NewStyle().Foreground(colorPurple),
		"unchanged": lipgloss.NewStyle().Foreground(colorDim),
	}

	// Diff lines
	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(4).
			Align(lipgloss.Right)

	addedLineStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	deletedLineStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	cosmeticLineStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	contextLineStyle = lipgloss.NewStyle().
				Foreground(colorFg)

	hunkHeaderStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	foldStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	statusKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Background(colorBgLight).
			Bold(true)

	statusErrStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Background(colorBgLight)

	// Help
	helpTitleStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
