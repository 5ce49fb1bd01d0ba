package platform

import (
	"log/slog"

	"github.com/aretw0/notetaker/pkg/core"
)

const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterRemote = "remote"
)

// options holds the internal configuration for a notebook.
type options struct {
	remote       core.RemoteService
	logger       *slog.Logger
	adapter      string
	mode         core.Mode
	eventBuffer  int
	errorHandler func(error)

	// fs adapter
	dir       string
	pattern   string
	readOnly  bool
	mustExist bool
	forceTemp bool
	devSafety bool

	// remote adapter
	endpoint string
	token    string
}

// Option defines a functional option for configuring a notebook.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		mode:      core.ModeSubscription,
		dir:       ".",
		devSafety: true,
	}
}

// WithLogger sets the logger for the reconciler and the adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRemote injects a ready service (e.g. a fake in tests).
// If provided, the adapter selection is skipped and the service is not
// closed with the notebook.
func WithRemote(remote core.RemoteService) Option {
	return func(o *options) {
		o.remote = remote
	}
}

// WithAdapter selects the backend by name: "fs" (default), "remote" or "memory".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithMode selects the authoritative channel. Defaults to core.ModeSubscription.
func WithMode(mode core.Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithEventBuffer sets the size of the change feed.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.eventBuffer = size
	}
}

// WithErrorHandler registers a callback for push stream and watcher failures,
// which are otherwise only logged.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithDir sets the notes directory of the fs adapter.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithPattern restricts which files of the directory are notes (doublestar glob).
func WithPattern(pattern string) Option {
	return func(o *options) {
		o.pattern = pattern
	}
}

// WithReadOnly opens the notes directory without writing to it.
// Read-only directories must exist and are never re-rooted by the dev sandbox.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithMustExist fails instead of creating a missing notes directory.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp forces the notes directory into the dev sandbox.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox applied when running via `go run` or
// `go test`. By default (true) the notes directory is re-rooted under the
// system temp dir so a dev run never writes into the working tree.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithEndpoint sets the base URL of the remote adapter.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.endpoint = url
	}
}

// WithToken sets the bearer token of the remote adapter.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}
