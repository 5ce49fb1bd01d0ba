package fs_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/fs"
	"github.com/aretw0/notetaker/pkg/core"
)

// setupService creates an initialized service on a fresh directory.
func setupService(t *testing.T, opts ...func(*fs.Config)) (*fs.Service, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "notes")
	cfg := fs.Config{
		Path:   dir,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc := fs.NewService(cfg)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	return svc, dir
}

func receive(t *testing.T, sub core.Subscription) core.Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for push event")
		return core.Event{}
	}
}

func TestInitialize(t *testing.T) {
	t.Run("Creates Directory if Missing", func(t *testing.T) {
		_, dir := setupService(t)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("Fails if MustExist and Missing", func(t *testing.T) {
		svc := fs.NewService(fs.Config{Path: filepath.Join(t.TempDir(), "missing"), MustExist: true})
		assert.Error(t, svc.Initialize(context.Background()))
	})

	t.Run("Rejects Invalid Pattern", func(t *testing.T) {
		svc := fs.NewService(fs.Config{Path: t.TempDir(), Pattern: "[unclosed"})
		assert.Error(t, svc.Initialize(context.Background()))
	})
}

func TestCRUD(t *testing.T) {
	svc, dir := setupService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "first")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	_, err = os.Stat(filepath.Join(dir, first.ID+fs.NoteExt))
	require.NoError(t, err, "note file must exist")

	second, err := svc.Create(ctx, "second\nwith two lines\n")
	require.NoError(t, err)

	notes, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{first, second}, notes, "listing follows creation order")

	updated, err := svc.Update(ctx, first.ID, "first, edited")
	require.NoError(t, err)
	assert.Equal(t, core.Note{ID: first.ID, Text: "first, edited"}, updated)

	notes, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{updated, second}, notes, "update keeps the creation slot")

	deleted, err := svc.Delete(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, deleted)

	notes, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{updated}, notes)
}

func TestNotFound(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "missing", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Delete(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Delete(ctx, "../escape")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Update(ctx, "", "x")
	assert.ErrorIs(t, err, core.ErrEmptyID)
}

func TestReadOnly(t *testing.T) {
	_, dir := setupService(t)
	ro := fs.NewService(fs.Config{Path: dir, ReadOnly: true})
	require.NoError(t, ro.Initialize(context.Background()))
	defer ro.Close()

	_, err := ro.Create(context.Background(), "x")
	assert.ErrorIs(t, err, fs.ErrReadOnly)
	_, err = ro.Delete(context.Background(), "x")
	assert.ErrorIs(t, err, fs.ErrReadOnly)

	notes, err := ro.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestHandWrittenNotes(t *testing.T) {
	svc, dir := setupService(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "groceries.md"), []byte("milk, eggs"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not a note"), 0644))

	notes, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Note{{ID: "groceries", Text: "milk, eggs"}}, notes)

	updated, err := svc.Update(context.Background(), "groceries", "milk, eggs, bread")
	require.NoError(t, err)
	assert.Equal(t, "groceries", updated.ID)
}

// TestReconcile_ColdStart verifies that Reconcile reports existing files as
// created on first run.
func TestReconcile_ColdStart(t *testing.T) {
	svc, dir := setupService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fileA.md"), []byte("# File A\nContent"), 0644))

	events, err := svc.Reconcile(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, core.EventCreate, events[0].Type)
	assert.Equal(t, "fileA", events[0].ID)
	assert.Equal(t, "# File A\nContent", events[0].Note.Text)
}

// TestReconcile_OfflineChanges verifies detection of modifications, creations
// and deletions made while nobody was watching.
func TestReconcile_OfflineChanges(t *testing.T) {
	svc, dir := setupService(t)
	ctx := context.Background()

	keep, err := svc.Create(ctx, "Version 1")
	require.NoError(t, err)
	gone, err := svc.Create(ctx, "Will be deleted")
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx)
	require.NoError(t, err)

	events, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "no changes since last reconcile")

	_, err = svc.Update(ctx, keep.ID, "Version 2 (Offline Edit)")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, gone.ID+fs.NoteExt)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.md"), []byte("New File"), 0644))

	events, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)

	seen := make(map[string]core.EventType)
	for _, e := range events {
		seen[e.ID] = e.Type
	}
	assert.Equal(t, core.EventUpdate, seen[keep.ID])
	assert.Equal(t, core.EventDelete, seen[gone.ID])
	assert.Equal(t, core.EventCreate, seen["new"])
}

func TestSubscribe_OwnWrites(t *testing.T) {
	svc, _ := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	creates, err := svc.Subscribe(ctx, core.EventCreate)
	require.NoError(t, err)
	updates, err := svc.Subscribe(ctx, core.EventUpdate)
	require.NoError(t, err)
	deletes, err := svc.Subscribe(ctx, core.EventDelete)
	require.NoError(t, err)

	n, err := svc.Create(ctx, "pushed")
	require.NoError(t, err)
	e := receive(t, creates)
	assert.Equal(t, core.EventCreate, e.Type)
	assert.Equal(t, n, e.Note)

	_, err = svc.Update(ctx, n.ID, "pushed again")
	require.NoError(t, err)
	e = receive(t, updates)
	assert.Equal(t, n.ID, e.ID)
	assert.Equal(t, "pushed again", e.Note.Text)

	_, err = svc.Delete(ctx, n.ID)
	require.NoError(t, err)
	e = receive(t, deletes)
	assert.Equal(t, core.EventDelete, e.Type)
	assert.Equal(t, n.ID, e.ID)
}

func TestSubscribe_UpdateKeepingText(t *testing.T) {
	svc, _ := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := svc.Subscribe(ctx, core.EventUpdate)
	require.NoError(t, err)

	n, err := svc.Create(ctx, "hello")
	require.NoError(t, err)
	for range 2 {
		_, err = svc.Update(ctx, n.ID, "hello")
		require.NoError(t, err)
		e := receive(t, updates)
		assert.Equal(t, n, e.Note)
	}
}

func TestSubscribe_ResubmitClearsForm(t *testing.T) {
	svc, _ := setupService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := core.NewReconciler(svc, core.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer r.Close()
	require.NoError(t, r.Start(ctx))

	n, err := r.Submit(ctx, "hello")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(r.Notes()) == 1 }, 3*time.Second, 10*time.Millisecond)

	r.BeginEdit(n)
	assert.Equal(t, core.LabelUpdate, r.Snapshot().SubmitLabel())
	_, err = r.Submit(ctx, "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return r.Snapshot().SubmitLabel() == core.LabelAdd
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []core.Note{n}, r.Notes())
}

func TestSubscribe_ExternalWrites(t *testing.T) {
	svc, dir := setupService(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.md"), []byte("before"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	creates, err := svc.Subscribe(ctx, core.EventCreate)
	require.NoError(t, err)

	// Files present at subscription time are part of the baseline, not events.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other-client.md"), []byte("from elsewhere"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a note"), 0644))

	e := receive(t, creates)
	assert.Equal(t, "other-client", e.ID)
	assert.Equal(t, "from elsewhere", e.Note.Text)
}

func TestSubscribe_Unsupported(t *testing.T) {
	svc, _ := setupService(t)
	_, err := svc.Subscribe(context.Background(), core.EventLoad)
	assert.ErrorIs(t, err, core.ErrUnsupportedEvent)
}

func TestClose(t *testing.T) {
	svc, _ := setupService(t)
	sub, err := svc.Subscribe(context.Background(), core.EventCreate)
	require.NoError(t, err)

	require.NoError(t, svc.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "subscription must be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released on close")
	}

	_, err = svc.Subscribe(context.Background(), core.EventCreate)
	assert.Error(t, err)
}

func TestIntrospection(t *testing.T) {
	svc, dir := setupService(t)
	_, err := svc.Create(context.Background(), "x")
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), core.EventCreate)
	require.NoError(t, err)

	state, ok := svc.State().(fs.ServiceState)
	require.True(t, ok)
	assert.Equal(t, dir, state.Path)
	assert.Equal(t, fs.DefaultPattern, state.Pattern)
	assert.Equal(t, 1, state.IndexSize)
	assert.Equal(t, 1, state.Subscriptions)
	assert.NotNil(t, state.LastReconcile)
	assert.Equal(t, "fs", svc.ComponentType())
}
