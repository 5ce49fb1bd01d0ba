package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Edit   key.Binding
	New    key.Binding
	Delete key.Binding
	Submit key.Binding
	Cancel key.Binding
	Switch key.Binding
	Quit   key.Binding
	Abort  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Edit:   key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		New:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Delete: key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Submit: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Switch: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch")),
		Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Abort:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) listHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.New, k.Delete, k.Switch, k.Quit}
}

func (k keyMap) formHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cancel, k.Switch}
}
