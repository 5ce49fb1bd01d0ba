package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// watchWorker turns filesystem notifications on the notes directory into
// push events. It runs under a supervisor, which replaces it on failure.
type watchWorker struct {
	*worker.BaseWorker
	svc     *Service
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

func newWatchWorker(svc *Service) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		svc:        svc,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.svc.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.svc.Path, err)
	}

	// Watching starts before the scan so nothing slips in between. Whatever
	// changed since the last observation (baseline or previous worker) is
	// reported now.
	missed, err := w.svc.Reconcile(ctx)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("initial scan failed: %w", err)
	}
	for _, e := range missed {
		w.svc.publish(e)
	}

	w.watcher = watcher
	w.svc.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.svc.Path,
		}
	})
}

// processFilesystemEvent filters a raw notification and publishes the
// resulting push event, if any.
func (w *watchWorker) processFilesystemEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if filepath.Dir(event.Name) != filepath.Clean(w.svc.Path) || !w.svc.matches(name) {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}

	w.svc.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	e, ok := w.svc.classify(name)
	if !ok {
		return false
	}
	w.svc.publish(e)
	return true
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.svc.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.svc.setWatcherActive(false)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.svc.reportError(wErr)
		}
	}
}
