package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
)

// Mode selects which channel is authoritative for mutating the note list.
// Exactly one of them mutates the list per logical change, never both.
type Mode string

const (
	// ModeSubscription makes push events authoritative. Direct call responses
	// never touch the list, so a change is applied once when its push arrives.
	ModeSubscription Mode = "subscription"

	// ModeDirect makes direct call responses authoritative. No push streams are
	// acquired.
	ModeDirect Mode = "direct"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSubscription:
		return ModeSubscription, nil
	case ModeDirect:
		return ModeDirect, nil
	}
	return "", fmt.Errorf("unknown mode: %q", s)
}

const (
	// DefaultEventBuffer is the size of the change feed when Config leaves it unset.
	DefaultEventBuffer = 100

	maxEarlyUpdates = 1024

	closeTimeout = 5 * time.Second
)

// Config holds the configuration for a Reconciler.
type Config struct {
	Mode         Mode
	Logger       *slog.Logger
	EventBuffer  int         // capacity of the Changes feed
	ErrorHandler func(error) // receives push stream failures
}

// Reconciler keeps an in-memory, ordered view of the remote notes consistent
// under user calls and the three push streams.
//
// All mutations go through one gate, so arrival order is the only ordering.
// Remote calls happen outside the gate; only their outcome is applied.
type Reconciler struct {
	remote RemoteService
	config Config

	mu      sync.Mutex
	state   State
	gone    map[string]struct{} // IDs whose deletion was applied
	early   map[string]Note     // updates that overtook their creation
	subs    []Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool

	changes chan Event
}

// NewReconciler creates a Reconciler on top of the given remote service.
func NewReconciler(remote RemoteService, config Config) *Reconciler {
	if config.Mode == "" {
		config.Mode = ModeSubscription
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	return &Reconciler{
		remote:  remote,
		config:  config,
		gone:    make(map[string]struct{}),
		early:   make(map[string]Note),
		changes: make(chan Event, config.EventBuffer),
	}
}

// Mode returns the authoritative channel of this reconciler.
func (r *Reconciler) Mode() Mode {
	return r.config.Mode
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Notes returns a copy of the current list.
func (r *Reconciler) Notes() []Note {
	return r.Snapshot().Notes
}

// Changes delivers one event per applied mutation of the list.
// The feed is lossy: when nobody drains it, newer events are dropped.
// It is closed by Close.
func (r *Reconciler) Changes() <-chan Event {
	return r.changes
}

// mutate applies fn under the gate. If the list changed, a change event is
// published. It returns false when the reconciler is already closed.
func (r *Reconciler) mutate(change Event, fn func(State) State) bool {
	return r.apply(change, fn, false)
}

// mutatePushed is mutate for push events. A push can end an edit without
// touching the list, so a change of the form state is published too.
func (r *Reconciler) mutatePushed(change Event, fn func(State) State) {
	r.apply(change, fn, true)
}

func (r *Reconciler) apply(change Event, fn func(State) State, withForm bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	next := fn(r.state)
	changed := !slices.Equal(r.state.Notes, next.Notes)
	if withForm {
		changed = !r.state.Equal(next)
	}
	r.state = next
	if changed {
		select {
		case r.changes <- change:
		default:
			r.config.Logger.Debug("change feed full, dropping event", "type", change.Type, "id", change.ID)
		}
	}
	return true
}

// Load fetches the full set from the remote service and replaces the list.
// On failure the list is left as it was.
func (r *Reconciler) Load(ctx context.Context) error {
	notes, err := r.remote.List(ctx)
	if err != nil {
		r.config.Logger.Error("load failed", "op", OpList, "error", err)
		return remoteErr(OpList, "", err)
	}
	if !r.mutate(Event{Type: EventLoad, Timestamp: time.Now().Unix()}, func(s State) State {
		clear(r.early)
		return s.ApplyLoad(notes)
	}) {
		return ErrClosed
	}
	r.config.Logger.Debug("notes loaded", "count", len(notes))
	return nil
}

// SetDraft updates the form content.
func (r *Reconciler) SetDraft(text string) {
	r.mutate(Event{}, func(s State) State { return s.ApplyDraft(text) })
}

// BeginEdit targets n for the next Submit and loads its text into the form.
func (r *Reconciler) BeginEdit(n Note) {
	r.mutate(Event{}, func(s State) State { return s.ApplyBeginEdit(n) })
}

// CancelEdit resets the form so the next Submit creates a note.
func (r *Reconciler) CancelEdit() {
	r.mutate(Event{}, func(s State) State { return s.ApplyClearDraft() })
}

// Submit updates the note being edited, or creates a new one when nothing is
// being edited or the edit target has disappeared from the list.
//
// In ModeSubscription the returned note is not inserted in the list; the
// matching push event does that. In ModeDirect the response is applied here.
func (r *Reconciler) Submit(ctx context.Context, text string) (Note, error) {
	if strings.TrimSpace(text) == "" {
		return Note{}, ErrEmptyText
	}

	snap := r.Snapshot()
	if snap.Editing() {
		return r.update(ctx, snap.EditingID, text)
	}
	return r.create(ctx, text)
}

func (r *Reconciler) create(ctx context.Context, text string) (Note, error) {
	n, err := r.remote.Create(ctx, text)
	if err != nil {
		r.config.Logger.Error("create failed", "op", OpCreate, "error", err)
		return Note{}, remoteErr(OpCreate, "", err)
	}

	direct := r.config.Mode == ModeDirect
	r.mutate(CreatedEvent(n, time.Now().Unix()), func(s State) State {
		if direct {
			s = r.applyCreate(s, n)
		}
		return s.ApplyClearDraft()
	})
	r.config.Logger.Debug("note created", "op", OpCreate, "id", n.ID, "mode", r.config.Mode)
	return n, nil
}

func (r *Reconciler) update(ctx context.Context, id, text string) (Note, error) {
	n, err := r.remote.Update(ctx, id, text)
	if err != nil {
		r.config.Logger.Error("update failed", "op", OpUpdate, "id", id, "error", err)
		return Note{}, remoteErr(OpUpdate, id, err)
	}

	if r.config.Mode == ModeDirect {
		// A response for a note that vanished meanwhile is dropped.
		r.mutate(UpdatedEvent(n, time.Now().Unix()), func(s State) State {
			return s.ApplyUpdate(n)
		})
	}
	r.config.Logger.Debug("note updated", "op", OpUpdate, "id", n.ID, "mode", r.config.Mode)
	return n, nil
}

// Delete asks the remote service to remove the note.
// The list changes through the authoritative channel only.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	deleted, err := r.remote.Delete(ctx, id)
	if err != nil {
		r.config.Logger.Error("delete failed", "op", OpDelete, "id", id, "error", err)
		return remoteErr(OpDelete, id, err)
	}

	if r.config.Mode == ModeDirect {
		r.mutate(DeletedEvent(deleted, time.Now().Unix()), func(s State) State {
			return r.applyDelete(s, deleted)
		})
	}
	r.config.Logger.Debug("note deleted", "op", OpDelete, "id", deleted, "mode", r.config.Mode)
	return nil
}

// OnCreatePushed applies a creation push. Replays are harmless, and a note
// whose deletion was already applied is not brought back.
func (r *Reconciler) OnCreatePushed(n Note) {
	r.mutatePushed(CreatedEvent(n, time.Now().Unix()), func(s State) State { return r.applyCreate(s, n) })
}

// OnUpdatePushed applies an update push. Unknown IDs leave the list as it is;
// the text is kept in case the creation of that note is still on its way.
func (r *Reconciler) OnUpdatePushed(n Note) {
	r.mutatePushed(UpdatedEvent(n, time.Now().Unix()), func(s State) State {
		if s.IndexOf(n.ID) < 0 {
			_, deleted := r.gone[n.ID]
			_, stashed := r.early[n.ID]
			if !deleted && n.Persisted() && (stashed || len(r.early) < maxEarlyUpdates) {
				r.early[n.ID] = n
			}
			return s
		}
		return s.ApplyUpdate(n)
	})
}

// OnDeletePushed applies a deletion push. Unknown IDs leave the list as it is.
func (r *Reconciler) OnDeletePushed(id string) {
	r.mutatePushed(DeletedEvent(id, time.Now().Unix()), func(s State) State { return r.applyDelete(s, id) })
}

// applyCreate and applyDelete run under the gate.

func (r *Reconciler) applyCreate(s State, n Note) State {
	if _, deleted := r.gone[n.ID]; deleted {
		r.config.Logger.Debug("dropping creation of a deleted note", "id", n.ID)
		return s
	}
	s = s.ApplyCreate(n)
	if u, ok := r.early[n.ID]; ok {
		delete(r.early, n.ID)
		s = s.ApplyUpdate(u)
	}
	return s
}

func (r *Reconciler) applyDelete(s State, id string) State {
	if id != "" {
		r.gone[id] = struct{}{}
		delete(r.early, id)
	}
	return s.ApplyDelete(id)
}

// Dispatch routes a push event to its handler.
func (r *Reconciler) Dispatch(e Event) error {
	switch e.Type {
	case EventCreate:
		r.OnCreatePushed(e.Note)
	case EventUpdate:
		r.OnUpdatePushed(e.Note)
	case EventDelete:
		r.OnDeletePushed(e.ID)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, e.Type)
	}
	return nil
}

// Start acquires the create, update and delete streams together and begins
// applying their events. If any acquisition fails, the streams already
// acquired are released before returning. In ModeDirect it does nothing.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.config.Mode == ModeDirect {
		r.config.Logger.Debug("direct mode, push streams not acquired")
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.started {
		r.mu.Unlock()
		return errors.New("reconciler already started")
	}
	r.started = true
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	subs := make([]Subscription, 0, len(PushTypes))
	for _, t := range PushTypes {
		sub, err := r.remote.Subscribe(runCtx, t)
		if err != nil {
			cancel()
			releaseAll(subs)
			r.mu.Lock()
			r.started = false
			r.mu.Unlock()
			r.config.Logger.Error("subscribe failed", "op", OpSubscribe, "type", t, "error", err)
			return remoteErr(OpSubscribe, "", fmt.Errorf("%s stream: %w", t, err))
		}
		subs = append(subs, sub)
	}

	done := make(chan struct{})
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		releaseAll(subs)
		return ErrClosed
	}
	r.subs = subs
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	lifecycle.Go(runCtx, func(ctx context.Context) error {
		defer close(done)
		return r.run(ctx, subs)
	}, lifecycle.WithErrorHandler(r.handleError))

	r.config.Logger.Debug("push streams acquired", "count", len(subs))
	return nil
}

// run is the event loop draining the three push streams. Events already
// waiting on more than one stream are applied in publish order.
func (r *Reconciler) run(ctx context.Context, subs []Subscription) error {
	q := newPushQueue(subs)
	for {
		if ctx.Err() != nil {
			return nil
		}
		q.poll(ctx, r)
		if e, ok := q.pop(); ok {
			if err := r.Dispatch(e); err != nil {
				r.handleError(err)
			}
			continue
		}
		if q.drained() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-q.streams[0]:
			q.accept(ctx, r, 0, e, ok)
		case e, ok := <-q.streams[1]:
			q.accept(ctx, r, 1, e, ok)
		case e, ok := <-q.streams[2]:
			q.accept(ctx, r, 2, e, ok)
		}
	}
}

// pushQueue holds at most one received event per stream, so that the
// earliest of them can be applied first.
type pushQueue struct {
	types   []EventType
	streams []<-chan Event // nil once a stream has ended
	heads   []Event
	held    []bool
}

func newPushQueue(subs []Subscription) *pushQueue {
	q := &pushQueue{
		types:   PushTypes,
		streams: make([]<-chan Event, len(subs)),
		heads:   make([]Event, len(subs)),
		held:    make([]bool, len(subs)),
	}
	for i, sub := range subs {
		q.streams[i] = sub.Events()
	}
	return q
}

// poll takes whatever is ready on the streams without a held event.
func (q *pushQueue) poll(ctx context.Context, r *Reconciler) {
	for i, ch := range q.streams {
		if q.held[i] || ch == nil {
			continue
		}
		select {
		case e, ok := <-ch:
			q.accept(ctx, r, i, e, ok)
		default:
		}
	}
}

func (q *pushQueue) accept(ctx context.Context, r *Reconciler, i int, e Event, ok bool) {
	if !ok {
		q.streams[i] = nil
		r.streamEnded(ctx, q.types[i])
		return
	}
	q.heads[i], q.held[i] = e, true
}

// pop removes the held event with the lowest sequence number.
func (q *pushQueue) pop() (Event, bool) {
	best := -1
	for i, ok := range q.held {
		if ok && (best < 0 || q.heads[i].Seq < q.heads[best].Seq) {
			best = i
		}
	}
	if best < 0 {
		return Event{}, false
	}
	q.held[best] = false
	return q.heads[best], true
}

func (q *pushQueue) drained() bool {
	for _, ch := range q.streams {
		if ch != nil {
			return false
		}
	}
	return true
}

func (r *Reconciler) streamEnded(ctx context.Context, t EventType) {
	if ctx.Err() != nil {
		return
	}
	r.handleError(fmt.Errorf("%s stream ended", t))
}

func (r *Reconciler) handleError(err error) {
	r.config.Logger.Error("push stream error", "error", err)
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
	}
}

// Close releases the three push streams together and stops the event loop.
// It is safe to call more than once; after it returns no push event mutates
// the list.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs, cancel, done := r.subs, r.cancel, r.done
	r.subs = nil
	close(r.changes)
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := releaseAll(subs)
	if done != nil {
		select {
		case <-done:
		case <-time.After(closeTimeout):
			r.config.Logger.Warn("event loop did not stop in time")
		}
	}
	r.config.Logger.Debug("reconciler closed", "released", len(subs))
	return err
}

// releaseAll closes every subscription, whatever the individual outcome.
func releaseAll(subs []Subscription) error {
	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
