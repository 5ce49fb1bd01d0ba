package core

import (
	"github.com/aretw0/introspection"
)

// ReconcilerState exposes internal state for observability.
type ReconcilerState struct {
	Mode            Mode   `json:"mode"`
	Notes           int    `json:"notes"`
	EditingID       string `json:"editing_id,omitempty"`
	Subscriptions   int    `json:"subscriptions"`
	EventBufferSize int    `json:"event_buffer_size"`
	PendingChanges  int    `json:"pending_changes"`
	RemoteType      string `json:"remote_type"`
	Closed          bool   `json:"closed"`
}

// State implements introspection.Introspectable.
func (r *Reconciler) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	remoteType := "unknown"
	if r.remote != nil {
		remoteType = "remote"
		if comp, ok := r.remote.(introspection.Component); ok {
			remoteType = comp.ComponentType()
		}
	}

	return ReconcilerState{
		Mode:            r.config.Mode,
		Notes:           len(r.state.Notes),
		EditingID:       r.state.EditingID,
		Subscriptions:   len(r.subs),
		EventBufferSize: r.config.EventBuffer,
		PendingChanges:  len(r.changes),
		RemoteType:      remoteType,
		Closed:          r.closed,
	}
}

// ComponentType implements introspection.Component.
func (r *Reconciler) ComponentType() string {
	return "reconciler"
}

var _ introspection.Introspectable = (*Reconciler)(nil)
var _ introspection.Component = (*Reconciler)(nil)
