package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	Path          string     `json:"path"`
	Pattern       string     `json:"pattern"`
	IndexSize     int        `json:"index_size"`
	ReadOnly      bool       `json:"read_only"`
	Subscriptions int        `json:"subscriptions"`
	WatcherActive bool       `json:"watcher_active"`
	LastReconcile *time.Time `json:"last_reconcile,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServiceState{
		Path:          s.Path,
		Pattern:       s.config.Pattern,
		IndexSize:     s.index.Len(),
		ReadOnly:      s.config.ReadOnly,
		Subscriptions: s.broker.Len(),
		WatcherActive: s.watcherActive,
		LastReconcile: s.lastReconcile,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)

func (s *Service) setWatcherActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcherActive = active
}

func (s *Service) recordReconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.lastReconcile = &now
}
