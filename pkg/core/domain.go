// Package core holds the note domain: the Note entity, the remote service
// contract and the reconciler that mirrors the remote list in memory.
package core

import "fmt"

// EventType represents the kind of change carried by a push event.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"

	// EventLoad is only emitted on the reconciler change feed, after a full listing
	// replaced the local list. Remote services never push it.
	EventLoad EventType = "LOAD"
)

// PushTypes lists the three streams a remote service must offer, in the order
// the reconciler acquires them.
var PushTypes = []EventType{EventCreate, EventUpdate, EventDelete}

// Valid reports whether t names one of the push streams.
func (t EventType) Valid() bool {
	switch t {
	case EventCreate, EventUpdate, EventDelete:
		return true
	}
	return false
}

// Event represents a committed change announced by the remote service.
// For deletions only ID is meaningful; Note is zero.
type Event struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	Note      Note      `json:"note,omitzero"`
	Timestamp int64     `json:"timestamp"` // Unix timestamp

	// Seq orders events across the three streams of one publisher.
	// Zero means the publisher does not number its events.
	Seq uint64 `json:"seq,omitempty"`
}

// String makes Event usable as a lifecycle.Event.
func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.ID)
}

// CreatedEvent builds the push event announcing n.
func CreatedEvent(n Note, ts int64) Event {
	return Event{Type: EventCreate, ID: n.ID, Note: n, Timestamp: ts}
}

// UpdatedEvent builds the push event announcing a new version of n.
func UpdatedEvent(n Note, ts int64) Event {
	return Event{Type: EventUpdate, ID: n.ID, Note: n, Timestamp: ts}
}

// DeletedEvent builds the push event announcing the removal of id.
func DeletedEvent(id string, ts int64) Event {
	return Event{Type: EventDelete, ID: id, Timestamp: ts}
}
