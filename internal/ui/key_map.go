package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	toggle   key.Binding
	next     key.Binding
	previous key.Binding
	loop     key.Binding
	rewind   key.Binding
	forward  key.Binding
	nextView key.Binding
	prevView key.Binding
	up       key.Binding
	down     key.Binding
	left     key.Binding
	right    key.Binding
	enter    key.Binding
	back     key.Binding
	search   key.Binding
	enqueue  key.Binding
	playNext key.Binding
	remove   key.Binding
	moveUp   key.Binding
	moveDown key.Binding
	clear    key.Binding
	preset   key.Binding
	hall     key.Binding
	flat     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		previous: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		loop:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "loop")),
		rewind:   key.NewBinding(key.WithKeys(","), key.WithHelp(",", "-10s")),
		forward:  key.NewBinding(key.WithKeys("."), key.WithHelp(".", "+10s")),
		nextView: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		prevView: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous view")),
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		left:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "band left")),
		right:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "band right")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		enqueue:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to queue")),
		playNext: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "play next")),
		remove:   key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "remove")),
		moveUp:   key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		moveDown: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		preset:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next preset")),
		hall:     key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "hall")),
		flat:     key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "flat")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.nextView, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.previous, k.loop},
		{k.rewind, k.forward, k.nextView, k.prevView},
		{k.search, k.enqueue, k.playNext, k.remove},
		{k.preset, k.hall, k.flat, k.quit},
	}
}
