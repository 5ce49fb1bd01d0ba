package core

import "context"

// RemoteService defines the contract of the managed backend holding the notes.
// Storage, querying and fan-out live behind it; the reconciler only consumes it.
type RemoteService interface {
	// List returns a full snapshot of the notes.
	List(ctx context.Context) ([]Note, error)

	// Create persists a new note. The service assigns the ID.
	Create(ctx context.Context, text string) (Note, error)

	// Update replaces the text of an existing note.
	Update(ctx context.Context, id, text string) (Note, error)

	// Delete removes a note and returns the deleted ID.
	Delete(ctx context.Context, id string) (string, error)

	// Subscribe opens a long-lived push stream for one event type.
	// Events are delivered in arrival order; there is no replay or gap filling.
	Subscribe(ctx context.Context, t EventType) (Subscription, error)
}

// Subscription is a live push stream. Events stops delivering once Close returns.
type Subscription interface {
	Events() <-chan Event
	Close() error
}
