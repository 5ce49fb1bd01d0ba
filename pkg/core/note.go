package core

// Note is the central entity of the domain.
// The ID is assigned by the remote service on creation; a note that was
// never persisted has an empty ID.
type Note struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"note" yaml:"note"`
}

// Persisted reports whether the note carries a server-assigned ID.
func (n Note) Persisted() bool {
	return n.ID != ""
}
