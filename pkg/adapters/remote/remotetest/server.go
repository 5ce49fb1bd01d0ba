// Package remotetest runs a throwaway note service over HTTP for tests.
package remotetest

import (
	"io"
	"log/slog"
	"net/http/httptest"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/adapters/remote"
)

// Server is an httptest.Server exposing an in-memory note service.
type Server struct {
	*httptest.Server

	// Backend is the service behind the handler. Tests use it to inject
	// failures or push events the way another client would.
	Backend *memory.Service
}

// Option configures the server.
type Option func(*options)

type options struct {
	token   string
	backend *memory.Service
	logger  *slog.Logger
	metrics *remote.Metrics
}

// WithToken requires every request to carry the given bearer token.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithBackend serves an existing memory service instead of a fresh one.
func WithBackend(svc *memory.Service) Option {
	return func(o *options) { o.backend = svc }
}

// WithLogger sets the request logger. Requests are not logged by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records requests and push streams in m.
func WithMetrics(m *remote.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewServer starts a server. Callers must Close it.
func NewServer(opts ...Option) *Server {
	o := &options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}
	if o.backend == nil {
		o.backend = memory.NewService()
	}

	h := remote.NewHandler(o.backend, remote.HandlerConfig{
		Token:   o.token,
		Logger:  o.logger,
		Metrics: o.metrics,
	})
	return &Server{
		Server:  httptest.NewServer(h),
		Backend: o.backend,
	}
}

// Close shuts the backend down, ending all push streams, then the server.
func (s *Server) Close() {
	_ = s.Backend.Close()
	s.Server.Close()
}
