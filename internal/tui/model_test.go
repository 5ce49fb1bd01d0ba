package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newReconciler(t *testing.T, svc *memory.Service, mode core.Mode) *core.Reconciler {
	t.Helper()
	r := core.NewReconciler(svc, core.Config{Mode: mode, Logger: quiet})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// next runs a command that waits on the notebook.
func next(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for command")
		return nil
	}
}

func TestModel_CreateThenEdit(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(memory.WithNotes(core.Note{ID: "n1", Text: "buy milk"}))
	r := newReconciler(t, svc, core.ModeDirect)
	require.NoError(t, r.Load(ctx))

	m := New(ctx, r)
	assert.Contains(t, m.View(), "Notes (1)")
	assert.Contains(t, m.View(), "> buy milk")
	assert.Contains(t, m.View(), core.LabelAdd)

	// New note.
	m, _ = update(t, m, keys("n"))
	m, _ = update(t, m, keys("call mom"))
	assert.Equal(t, "call mom", r.Snapshot().DraftText)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = update(t, m, next(t, cmd))
	require.Len(t, r.Notes(), 2)
	assert.Equal(t, "call mom", r.Notes()[1].Text)
	assert.Empty(t, m.form.Value())
	assert.Contains(t, m.View(), "saved "+r.Notes()[1].ID)

	// Edit the first one.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "n1", r.Snapshot().EditingID)
	assert.Equal(t, "buy milk", m.form.Value())
	assert.Contains(t, m.View(), core.LabelUpdate)
	assert.Contains(t, m.View(), "buy milk (editing)")

	m, _ = update(t, m, keys(" and eggs"))
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = update(t, m, next(t, cmd))

	assert.Equal(t, "buy milk and eggs", r.Notes()[0].Text)
	assert.Empty(t, r.Snapshot().EditingID)
	assert.Contains(t, m.View(), core.LabelAdd)
}

func TestModel_CancelEdit(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(memory.WithNotes(core.Note{ID: "n1", Text: "keep me"}))
	r := newReconciler(t, svc, core.ModeDirect)
	require.NoError(t, r.Load(ctx))

	m := New(ctx, r)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "n1", r.Snapshot().EditingID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, r.Snapshot().EditingID)
	assert.Empty(t, m.form.Value())
	assert.Equal(t, focusList, m.focus)
	assert.Equal(t, "keep me", r.Notes()[0].Text)
}

func TestModel_Delete(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService(memory.WithNotes(
		core.Note{ID: "n1", Text: "first"},
		core.Note{ID: "n2", Text: "second"},
	))
	r := newReconciler(t, svc, core.ModeDirect)
	require.NoError(t, r.Load(ctx))

	m := New(ctx, r)
	m, _ = update(t, m, keys("j"))
	assert.Contains(t, m.View(), "> second")

	m, cmd := update(t, m, keys("d"))
	m, _ = update(t, m, next(t, cmd))

	require.Len(t, r.Notes(), 1)
	assert.Equal(t, "n1", r.Notes()[0].ID)
	assert.Equal(t, 0, m.cursor)
	assert.Contains(t, m.View(), "deleted n2")
}

func TestModel_Errors(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewService()
	svc.CreateErr = errors.New("backend down")
	r := newReconciler(t, svc, core.ModeDirect)

	m := New(ctx, r)
	assert.Contains(t, m.View(), "No notes yet.")

	m, _ = update(t, m, keys("n"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = update(t, m, next(t, cmd))
	assert.ErrorIs(t, m.err, core.ErrEmptyText)

	m, _ = update(t, m, keys("lost"))
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = update(t, m, next(t, cmd))
	assert.Contains(t, m.View(), "backend down")
	assert.Equal(t, "lost", m.form.Value())
	assert.Empty(t, r.Notes())
}

func TestModel_Pushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := memory.NewService(memory.WithNotes(core.Note{ID: "n1", Text: "already here"}))
	r := newReconciler(t, svc, core.ModeSubscription)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Load(ctx))

	m := New(ctx, r)
	cmd := m.Init()

	// The load is already on the feed.
	m, cmd = update(t, m, next(t, cmd))

	_, err := svc.Create(ctx, "from another client")
	require.NoError(t, err)
	m, _ = update(t, m, next(t, cmd))

	assert.Contains(t, m.View(), "Notes (2)")
	assert.Contains(t, m.View(), "from another client")
}

func TestModel_UpdatePushAfterSave(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n1 := core.Note{ID: "n1", Text: "unchanged"}
	svc := memory.NewService(memory.WithNotes(n1))
	r := newReconciler(t, svc, core.ModeSubscription)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Load(ctx))

	m := New(ctx, r)
	feed := m.Init()
	m, feed = update(t, m, next(t, feed))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "n1", r.Snapshot().EditingID)

	// The push is held back until the save has been acknowledged.
	svc.Silent = true
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m, _ = update(t, m, next(t, cmd))
	assert.Contains(t, m.View(), "saved n1")
	assert.Contains(t, m.View(), core.LabelUpdate)

	svc.Push(core.UpdatedEvent(n1, 0))
	m, _ = update(t, m, next(t, feed))

	assert.Contains(t, m.View(), core.LabelAdd)
	assert.NotContains(t, m.View(), "(editing)")
	assert.Empty(t, m.form.Value())
}

func TestModel_FeedClosed(t *testing.T) {
	r := newReconciler(t, memory.NewService(), core.ModeSubscription)
	m := New(context.Background(), r)
	cmd := m.Init()

	require.NoError(t, r.Close())
	m, _ = update(t, m, next(t, cmd))
	assert.Contains(t, m.View(), "notebook closed")
}

func TestModel_Quit(t *testing.T) {
	m := New(context.Background(), newReconciler(t, memory.NewService(), core.ModeDirect))

	_, cmd := update(t, m, keys("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	// In the form, q is text.
	m, _ = update(t, m, keys("n"))
	m, _ = update(t, m, keys("q"))
	assert.Equal(t, "q", m.form.Value())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
