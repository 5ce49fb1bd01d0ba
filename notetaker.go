package notetaker

import (
	"log/slog"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
)

// --- Types ---

// Notebook pairs a reconciler with the service it mirrors.
type Notebook = platform.Notebook

// Note is a single note.
type Note = core.Note

// Mode selects the authoritative channel of a notebook.
type Mode = core.Mode

const (
	ModeSubscription = core.ModeSubscription
	ModeDirect       = core.ModeDirect
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	return core.ParseMode(s)
}

// --- Configuration ---

// Option defines a functional option for configuring a notebook.
type Option = platform.Option

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = platform.AdapterFS
	AdapterRemote = platform.AdapterRemote
	AdapterMemory = platform.AdapterMemory
)

// WithLogger sets the logger for the reconciler and the adapter.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRemote injects a ready service.
func WithRemote(remote core.RemoteService) Option {
	return platform.WithRemote(remote)
}

// WithAdapter selects the backend by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithMode selects the authoritative channel.
func WithMode(mode Mode) Option {
	return platform.WithMode(mode)
}

// WithEventBuffer sets the size of the change feed.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithErrorHandler registers a callback for push stream failures.
func WithErrorHandler(fn func(error)) Option {
	return platform.WithErrorHandler(fn)
}

// WithDir sets the notes directory of the fs adapter.
func WithDir(dir string) Option {
	return platform.WithDir(dir)
}

// WithPattern restricts which files of the directory are notes.
func WithPattern(pattern string) Option {
	return platform.WithPattern(pattern)
}

// WithReadOnly opens the notes directory without writing to it.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithMustExist fails instead of creating a missing notes directory.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the notes directory into the dev sandbox.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox applied under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithEndpoint sets the base URL of the remote adapter.
func WithEndpoint(url string) Option {
	return platform.WithEndpoint(url)
}

// WithToken sets the bearer token of the remote adapter.
func WithToken(token string) Option {
	return platform.WithToken(token)
}

// --- Factory ---

// New opens the configured service and wraps it in a notebook.
func New(opts ...Option) (*Notebook, error) {
	return platform.New(opts...)
}

// OpenRemote opens the configured service alone.
func OpenRemote(opts ...Option) (core.RemoteService, error) {
	return platform.OpenRemote(opts...)
}

// --- Safety & Utils ---

// ResolveDir determines the actual notes directory based on safety rules.
func ResolveDir(userPath string, forceTemp bool) string {
	return platform.ResolveDir(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindConfig looks upwards for a config file.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}
