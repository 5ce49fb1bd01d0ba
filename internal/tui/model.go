// Package tui is a terminal front end for a notebook: the live list of notes
// above a form that creates a note or updates the one being edited.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aretw0/notetaker/internal/render"
	"github.com/aretw0/notetaker/pkg/core"
)

// Notebook is the part of a reconciler the interface drives.
type Notebook interface {
	Snapshot() core.State
	Changes() <-chan core.Event
	Submit(ctx context.Context, text string) (core.Note, error)
	Delete(ctx context.Context, id string) error
	BeginEdit(n core.Note)
	CancelEdit()
	SetDraft(text string)
}

type focus int

const (
	focusList focus = iota
	focusForm
)

type (
	changedMsg    core.Event
	feedClosedMsg struct{}
	savedMsg      core.Note
	deletedMsg    string
	errMsg        struct{ err error }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	editingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Model is the bubbletea model. The reconciler owns the list and the form
// state; Model only mirrors its snapshots and forwards input.
type Model struct {
	ctx    context.Context
	nb     Notebook
	state  core.State
	cursor int
	focus  focus
	form   textarea.Model
	help   help.Model
	keys   keyMap
	status string
	err    error
}

// New builds a model over nb. Remote calls made from the interface use ctx.
func New(ctx context.Context, nb Notebook) Model {
	form := textarea.New()
	form.Placeholder = "Write a note…"
	form.ShowLineNumbers = false
	form.SetHeight(4)

	m := Model{
		ctx:  ctx,
		nb:   nb,
		form: form,
		help: help.New(),
		keys: defaultKeys(),
	}
	m.refresh()
	return m
}

// Run takes over the terminal until the user quits or ctx is done.
func Run(ctx context.Context, nb Notebook, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(ctx, nb), opts...).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return waitForChange(m.nb.Changes())
}

func waitForChange(changes <-chan core.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-changes
		if !ok {
			return feedClosedMsg{}
		}
		return changedMsg(e)
	}
}

// refresh takes a new snapshot and brings the form in line with its draft.
func (m *Model) refresh() {
	m.state = m.nb.Snapshot()
	if m.cursor >= len(m.state.Notes) {
		m.cursor = max(len(m.state.Notes)-1, 0)
	}
	if m.form.Value() != m.state.DraftText {
		m.form.SetValue(m.state.DraftText)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.form.SetWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.nb.Changes())

	case feedClosedMsg:
		m.status = "notebook closed"
		return m, nil

	case savedMsg:
		m.refresh()
		m.status, m.err = "saved "+msg.ID, nil
		return m, nil

	case deletedMsg:
		m.refresh()
		m.status, m.err = "deleted "+string(msg), nil
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Abort) {
			return m, tea.Quit
		}
		if m.focus == focusForm {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Notes)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Edit):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.nb.BeginEdit(n)
		m.refresh()
		return m.focusForm()
	case key.Matches(msg, m.keys.New):
		m.nb.CancelEdit()
		m.refresh()
		return m.focusForm()
	case key.Matches(msg, m.keys.Switch):
		return m.focusForm()
	case key.Matches(msg, m.keys.Delete):
		n, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.delete(n.ID)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit(m.form.Value())
	case key.Matches(msg, m.keys.Cancel):
		m.nb.CancelEdit()
		m.refresh()
		return m.focusList(), nil
	case key.Matches(msg, m.keys.Switch):
		return m.focusList(), nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	if v := m.form.Value(); v != m.state.DraftText {
		m.nb.SetDraft(v)
		m.state.DraftText = v
	}
	return m, cmd
}

func (m Model) focusForm() (tea.Model, tea.Cmd) {
	m.focus = focusForm
	cmd := m.form.Focus()
	return m, cmd
}

func (m Model) focusList() Model {
	m.focus = focusList
	m.form.Blur()
	return m
}

func (m Model) selected() (core.Note, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Notes) {
		return core.Note{}, false
	}
	return m.state.Notes[m.cursor], true
}

func (m Model) submit(text string) tea.Cmd {
	ctx, nb := m.ctx, m.nb
	return func() tea.Msg {
		n, err := nb.Submit(ctx, text)
		if err != nil {
			return errMsg{err}
		}
		return savedMsg(n)
	}
}

func (m Model) delete(id string) tea.Cmd {
	ctx, nb := m.ctx, m.nb
	return func() tea.Msg {
		if err := nb.Delete(ctx, id); err != nil {
			return errMsg{err}
		}
		return deletedMsg(id)
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Notes (%d)", len(m.state.Notes))))
	b.WriteString("\n\n")
	if len(m.state.Notes) == 0 {
		b.WriteString(dimStyle.Render("  No notes yet."))
		b.WriteString("\n")
	}
	for i, n := range m.state.Notes {
		line := "  " + render.Summary(n.Text)
		style := lipgloss.NewStyle()
		if n.ID == m.state.EditingID {
			line += " (editing)"
			style = editingStyle
		}
		if i == m.cursor && m.focus == focusList {
			line = ">" + line[1:]
			style = selectedStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(m.state.SubmitLabel()))
	b.WriteString("\n")
	b.WriteString(m.form.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(dimStyle.Render(m.status))
	}
	b.WriteString("\n")

	bindings := m.keys.listHelp()
	if m.focus == focusForm {
		bindings = m.keys.formHelp()
	}
	b.WriteString(m.help.ShortHelpView(bindings))
	return b.String()
}
