package remote_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/adapters/remote"
	"github.com/aretw0/notetaker/pkg/adapters/remote/remotetest"
	"github.com/aretw0/notetaker/pkg/core"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, srv *remotetest.Server, token string) *remote.Client {
	t.Helper()
	c, err := remote.NewClient(remote.Config{Endpoint: srv.URL, Token: token, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func receive(t *testing.T, sub core.Subscription) core.Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "stream closed")
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for push event")
		return core.Event{}
	}
}

func TestNewClient(t *testing.T) {
	_, err := remote.NewClient(remote.Config{})
	assert.Error(t, err)

	_, err = remote.NewClient(remote.Config{Endpoint: "ftp://example.com"})
	assert.Error(t, err)

	c, err := remote.NewClient(remote.Config{Endpoint: "https://notes.example.com/api", Token: "t"})
	require.NoError(t, err)
	state := c.State().(remote.ClientState)
	assert.True(t, state.Authenticated)
	assert.Equal(t, "remote", c.ComponentType())
}

func TestCRUD(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	c := newClient(t, srv, "")
	ctx := context.Background()

	notes, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
	assert.NotNil(t, notes)

	n, err := c.Create(ctx, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "hello", n.Text)

	updated, err := c.Update(ctx, n.ID, "hello, world")
	require.NoError(t, err)
	assert.Equal(t, core.Note{ID: n.ID, Text: "hello, world"}, updated)

	notes, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Note{updated}, notes)

	id, err := c.Delete(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, id)

	_, err = c.Delete(ctx, n.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = c.Update(ctx, "missing", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = c.Update(ctx, "", "x")
	assert.ErrorIs(t, err, core.ErrEmptyID)
}

func TestServerFailure(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	srv.Backend.ListErr = errors.New("database on fire")
	c := newClient(t, srv, "")

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "database on fire")
}

func TestToken(t *testing.T) {
	srv := remotetest.NewServer(remotetest.WithToken("s3cret"))
	defer srv.Close()
	ctx := context.Background()

	_, err := newClient(t, srv, "").List(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = newClient(t, srv, "wrong").Subscribe(ctx, core.EventCreate)
	assert.Error(t, err)

	c := newClient(t, srv, "s3cret")
	_, err = c.List(ctx)
	assert.NoError(t, err)

	sub, err := c.Subscribe(ctx, core.EventCreate)
	require.NoError(t, err)
	defer sub.Close()
}

func TestSubscribe(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	c := newClient(t, srv, "")
	ctx := context.Background()

	creates, err := c.Subscribe(ctx, core.EventCreate)
	require.NoError(t, err)
	defer creates.Close()
	deletes, err := c.Subscribe(ctx, core.EventDelete)
	require.NoError(t, err)
	defer deletes.Close()

	require.Eventually(t, func() bool { return srv.Backend.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, c.State().(remote.ClientState).Subscriptions)

	n, err := c.Create(ctx, "pushed")
	require.NoError(t, err)
	assert.Equal(t, n, receive(t, creates).Note)

	srv.Backend.Push(core.DeletedEvent("from-elsewhere", 1))
	e := receive(t, deletes)
	assert.Equal(t, core.EventDelete, e.Type)
	assert.Equal(t, "from-elsewhere", e.ID)
}

func TestSubscribeUnsupported(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	c := newClient(t, srv, "")

	_, err := c.Subscribe(context.Background(), core.EventLoad)
	assert.ErrorIs(t, err, core.ErrUnsupportedEvent)
}

func TestSubscriptionClose(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	c := newClient(t, srv, "")

	sub, err := c.Subscribe(context.Background(), core.EventUpdate)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Backend.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")

	require.Eventually(t, func() bool {
		_, ok := <-sub.Events()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.Backend.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond,
		"server must release its side of the stream")
	assert.Equal(t, 0, c.State().(remote.ClientState).Subscriptions)
}

func TestStreamEndsWhenServerCloses(t *testing.T) {
	srv := remotetest.NewServer()
	c := newClient(t, srv, "")

	sub, err := c.Subscribe(context.Background(), core.EventCreate)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, srv.Backend.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end")
	}
	srv.Close()
}

func TestReconcilerOverHTTP(t *testing.T) {
	srv := remotetest.NewServer()
	defer srv.Close()
	c := newClient(t, srv, "")

	r := core.NewReconciler(c, core.Config{Logger: quietLogger()})
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Load(ctx))
	require.Eventually(t, func() bool { return srv.Backend.Subscribers() == 3 }, 2*time.Second, 10*time.Millisecond)

	_, err := r.Submit(ctx, "over the wire")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(r.Notes()) == 1 }, 3*time.Second, 10*time.Millisecond)

	// Another client edits the note; the change arrives only through the push stream.
	id := r.Notes()[0].ID
	_, err = srv.Backend.Update(ctx, id, "edited elsewhere")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		notes := r.Notes()
		return len(notes) == 1 && notes[0].Text == "edited elsewhere"
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, r.Delete(ctx, id))
	require.Eventually(t, func() bool { return len(r.Notes()) == 0 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, r.Close())
	require.Eventually(t, func() bool { return srv.Backend.Subscribers() == 0 }, 3*time.Second, 10*time.Millisecond)
}
