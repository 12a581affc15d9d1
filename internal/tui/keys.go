package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	NextFile key.Binding
	PrevFile key.Binding
	NextHunk key.Binding
	PrevHunk key.Binding
	Stage    key.Binding
	Write    key.Binding
	Fold     key.Binding
	Toggle   key.Binding
	All      key.Binding
	Dirs     key.Binding
	More     key.Binding
	Less     key.Binding
	Search   key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("enter", "right", "l"),
		key.WithHelp("enter", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("backspace", "left", "h", "esc"),
		key.WithHelp("bksp", "zoom out"),
	),
	NextFile: key.NewBinding(
		key.WithKeys("n", "tab"),
		key.WithHelp("n/tab", "next file"),
	),
	PrevFile: key.NewBinding(
		key.WithKeys("N", "shift+tab"),
		key.WithHelp("N/S-tab", "prev file"),
	),
	NextHunk: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "next hunk"),
	),
	PrevHunk: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "prev hunk"),
	),
	Stage: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "stage/unstage"),
	),
	Write: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "write staged to index"),
	),
	Fold: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "expand/fold cosmetic"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "unified/split"),
	),
	All: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "show unchanged symbols"),
	),
	Dirs: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "directory heat"),
	),
	More: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "more context"),
	),
	Less: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "less context"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// helpOrder is the order bindings are listed in the help screen.
var helpOrder = []key.Binding{
	keys.Up, keys.Down, keys.ZoomIn, keys.ZoomOut, keys.NextFile, keys.PrevFile,
	keys.NextHunk, keys.PrevHunk, keys.Stage, keys.Write, keys.Fold, keys.Toggle,
	keys.All, keys.Dirs, keys.More, keys.Less, keys.Search, keys.Reload, keys.Help, keys.Quit,
}
