package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	next        key.Binding
	previous    key.Binding
	flip        key.Binding
	play        key.Binding
	restart     key.Binding
	fullRestart key.Binding
	award       key.Binding
	scoreboard  key.Binding
	playlist    key.Binding
	enter       key.Binding
	back        key.Binding
	quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		next:        key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next card")),
		previous:    key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "previous card")),
		flip:        key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flip card")),
		play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		restart:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		fullRestart: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reshuffle")),
		award:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "award points")),
		scoreboard:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scoreboard")),
		playlist:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "change playlist")),
		enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.play, k.flip, k.next, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.play, k.flip, k.next, k.previous},
		{k.restart, k.fullRestart, k.playlist},
		{k.award, k.scoreboard, k.back, k.quit},
	}
}
