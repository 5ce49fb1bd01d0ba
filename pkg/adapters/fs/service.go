// Package fs implements core.RemoteService on top of a shared directory.
//
// Every note is one Markdown file named after its ID, with a small YAML
// frontmatter header. The directory is the source of truth: push events are
// produced by watching it, so changes made by other processes (another
// client, a sync tool, a text editor) reach subscribers exactly like our own.
package fs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/notetaker/pkg/broker"
	"github.com/aretw0/notetaker/pkg/core"
)

const (
	// NoteExt is the extension of note files.
	NoteExt = ".md"

	// DefaultPattern selects the files treated as notes.
	DefaultPattern = "*" + NoteExt
)

// ErrReadOnly is returned by write operations on a read-only service.
var ErrReadOnly = errors.New("service is in read-only mode")

// Config holds the configuration for the directory-backed service.
type Config struct {
	Path         string
	MustExist    bool
	Pattern      string // doublestar glob matched against file names
	ReadOnly     bool
	Logger       *slog.Logger
	ErrorHandler func(error) // receives watcher failures
}

// stopper is the part of the watcher supervisor needed for shutdown.
type stopper interface {
	Stop(ctx context.Context) error
}

// Service implements core.RemoteService using a directory of note files.
type Service struct {
	Path   string
	config Config
	index  *index
	broker *broker.Broker
	newID  func() string
	now    func() time.Time

	watchMu       sync.Mutex // serializes watcher start and shutdown
	mu            sync.RWMutex
	supervisor    stopper
	watcherActive bool
	lastReconcile *time.Time
	runCtx        context.Context
	cancel        context.CancelFunc
	closed        bool
}

// NewService creates a new directory-backed service.
func NewService(config Config) *Service {
	if config.Pattern == "" {
		config.Pattern = DefaultPattern
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		Path:   config.Path,
		config: config,
		index:  newIndex(),
		broker: broker.New(),
		newID:  uuid.NewString,
		now:    time.Now,
		runCtx: runCtx,
		cancel: cancel,
	}
}

// Initialize ensures the directory exists.
func (s *Service) Initialize(ctx context.Context) error {
	if !doublestar.ValidatePattern(s.config.Pattern) {
		return fmt.Errorf("invalid note pattern: %s", s.config.Pattern)
	}

	if s.config.MustExist || s.config.ReadOnly {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("notes directory does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("notes path is not a directory: %s", s.Path)
		}
		return nil
	}

	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}
	return nil
}

// matches reports whether a file name denotes a note.
func (s *Service) matches(name string) bool {
	if isTempFile(name) {
		return false
	}
	ok, err := doublestar.Match(s.config.Pattern, name)
	return err == nil && ok
}

// fileName maps an ID to its file name, rejecting IDs that would escape the directory.
func (s *Service) fileName(id string) (string, error) {
	if id == "" {
		return "", core.ErrEmptyID
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return id + NoteExt, nil
}

func idFromName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// readRecord loads and decodes one note file.
func (s *Service) readRecord(name string) (record, os.FileInfo, error) {
	full := filepath.Join(s.Path, name)
	info, err := os.Stat(full)
	if err != nil {
		return record{}, nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return record{}, nil, err
	}
	rec, err := decodeNote(data, idFromName(name), info.ModTime().UnixNano())
	if err != nil {
		return record{}, nil, fmt.Errorf("%s: %w", name, err)
	}
	return rec, info, nil
}

// scan reads every note file in the directory, keyed by file name.
func (s *Service) scan() (map[string]record, map[string]time.Time, error) {
	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read notes directory: %w", err)
	}

	records := make(map[string]record, len(entries))
	mtimes := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.matches(entry.Name()) {
			continue
		}
		rec, info, err := s.readRecord(entry.Name())
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed while scanning
			}
			s.config.Logger.Warn("skipping unreadable note", "file", entry.Name(), "error", err)
			continue
		}
		records[entry.Name()] = rec
		mtimes[entry.Name()] = info.ModTime()
	}
	return records, mtimes, nil
}

// List implements core.RemoteService. Notes come back in creation order.
func (s *Service) List(ctx context.Context) ([]core.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, _, err := s.scan()
	if err != nil {
		return nil, err
	}

	sorted := make([]record, 0, len(records))
	for _, rec := range records {
		sorted = append(sorted, rec)
	}
	slices.SortFunc(sorted, func(a, b record) int {
		if c := cmp.Compare(a.Created, b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.Note.ID, b.Note.ID)
	})

	notes := make([]core.Note, 0, len(sorted))
	for _, rec := range sorted {
		notes = append(notes, rec.Note)
	}
	return notes, nil
}

// Create implements core.RemoteService.
func (s *Service) Create(ctx context.Context, text string) (core.Note, error) {
	if err := ctx.Err(); err != nil {
		return core.Note{}, err
	}
	if s.config.ReadOnly {
		return core.Note{}, ErrReadOnly
	}

	rec := record{
		Note:    core.Note{ID: s.newID(), Text: text},
		Created: s.now().UnixNano(),
	}
	name, err := s.fileName(rec.Note.ID)
	if err != nil {
		return core.Note{}, err
	}
	if err := s.write(name, rec); err != nil {
		return core.Note{}, err
	}
	s.config.Logger.Debug("note written", "op", core.OpCreate, "id", rec.Note.ID)
	return rec.Note, nil
}

// Update implements core.RemoteService.
func (s *Service) Update(ctx context.Context, id, text string) (core.Note, error) {
	if err := ctx.Err(); err != nil {
		return core.Note{}, err
	}
	if s.config.ReadOnly {
		return core.Note{}, ErrReadOnly
	}

	name, err := s.fileName(id)
	if err != nil {
		return core.Note{}, err
	}
	rec, _, err := s.readRecord(name)
	if os.IsNotExist(err) {
		return core.Note{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Note{}, err
	}

	rec.Note = core.Note{ID: id, Text: text}
	rec.Updated = max(s.now().UnixNano(), rec.Updated+1)
	if err := s.write(name, rec); err != nil {
		return core.Note{}, err
	}
	s.config.Logger.Debug("note written", "op", core.OpUpdate, "id", id)
	return rec.Note, nil
}

// Delete implements core.RemoteService.
func (s *Service) Delete(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.config.ReadOnly {
		return "", ErrReadOnly
	}

	name, err := s.fileName(id)
	if err != nil {
		return "", err
	}
	if err := os.Remove(filepath.Join(s.Path, name)); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to delete note: %w", err)
	}
	s.config.Logger.Debug("note removed", "op", core.OpDelete, "id", id)
	return id, nil
}

func (s *Service) write(name string, rec record) error {
	data, err := encodeNote(rec)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.Path, name), data, 0644)
}

// Subscribe implements core.RemoteService. The directory watcher starts with
// the first subscription and runs until Close.
func (s *Service) Subscribe(ctx context.Context, t core.EventType) (core.Subscription, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedEvent, t)
	}
	sub, err := s.broker.Subscribe(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWatching(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

// ensureWatching records a baseline of the directory and starts the
// supervised watcher, once.
func (s *Service) ensureWatching(ctx context.Context) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	s.mu.RLock()
	closed, running := s.closed, s.supervisor != nil
	s.mu.RUnlock()
	if closed {
		return core.ErrClosed
	}
	if running {
		return nil
	}

	if !s.index.Primed() {
		if _, err := s.Reconcile(ctx); err != nil {
			return fmt.Errorf("baseline scan failed: %w", err)
		}
	}

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(s), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   30 * time.Second,
			MaxRestarts:     5,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("notes-dir", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(s.runCtx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	s.mu.Lock()
	s.supervisor = sup
	s.mu.Unlock()
	return nil
}

// Reconcile compares the directory with what the watcher last observed and
// returns the changes in between. On a cold index every note is reported as
// created.
func (s *Service) Reconcile(ctx context.Context) ([]core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, mtimes, err := s.scan()
	if err != nil {
		return nil, err
	}

	ts := s.now().Unix()
	var events []core.Event
	s.index.Range(func(name string, entry indexEntry) bool {
		if _, ok := records[name]; !ok {
			s.index.Delete(name)
			events = append(events, core.DeletedEvent(entry.ID, ts))
		}
		return true
	})

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(records[a].Created, records[b].Created)
	})
	for _, name := range names {
		if e, ok := s.observe(name, records[name], mtimes[name], ts); ok {
			events = append(events, e)
		}
	}

	s.index.markPrimed()
	s.recordReconcile()
	return events, nil
}

// classify turns a raw filesystem change on one file into at most one push event.
func (s *Service) classify(name string) (core.Event, bool) {
	ts := s.now().Unix()
	rec, info, err := s.readRecord(name)
	if err != nil {
		if os.IsNotExist(err) {
			if entry, ok := s.index.Delete(name); ok {
				return core.DeletedEvent(entry.ID, ts), true
			}
			return core.Event{}, false
		}
		s.reportError(fmt.Errorf("failed to read %s: %w", name, err))
		return core.Event{}, false
	}
	return s.observe(name, rec, info.ModTime(), ts)
}

// observe records rec in the index and reports how it differs from the previous observation.
func (s *Service) observe(name string, rec record, mtime time.Time, ts int64) (core.Event, bool) {
	prev, known := s.index.Get(name)
	s.index.Set(name, &indexEntry{ID: rec.Note.ID, Text: rec.Note.Text, Updated: rec.Updated, LastModified: mtime})

	// An Update that keeps the text still bumps the revision and is reported.
	switch {
	case !known:
		return core.CreatedEvent(rec.Note, ts), true
	case prev.Text != rec.Note.Text, prev.Updated != rec.Updated:
		return core.UpdatedEvent(rec.Note, ts), true
	}
	return core.Event{}, false
}

func (s *Service) publish(e core.Event) {
	s.config.Logger.Debug("push", "type", e.Type, "id", e.ID)
	s.broker.Publish(e)
}

func (s *Service) reportError(err error) {
	s.config.Logger.Error("watcher error", "error", err)
	if s.config.ErrorHandler != nil {
		s.config.ErrorHandler(err)
	}
}

// Close stops the watcher and releases every subscription.
func (s *Service) Close() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sup := s.supervisor
	s.mu.Unlock()

	var errs []error
	if sup != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			errs = append(errs, err)
		}
	}
	s.cancel()
	errs = append(errs, s.broker.Close())
	return errors.Join(errs...)
}
