package core

import "slices"

// Submit button labels.
const (
	LabelAdd    = "Add Note"
	LabelUpdate = "Update Note"
)

// State is an immutable snapshot of the reconciler.
// Every Apply* method returns a new State and leaves the receiver untouched,
// so snapshots can be shared freely.
type State struct {
	Notes     []Note
	DraftText string
	EditingID string
}

// IndexOf returns the position of the note with the given ID, or -1.
func (s State) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.Notes, func(n Note) bool { return n.ID == id })
}

// Find returns the note with the given ID.
func (s State) Find(id string) (Note, bool) {
	i := s.IndexOf(id)
	if i < 0 {
		return Note{}, false
	}
	return s.Notes[i], true
}

// Editing reports whether the next submit targets a note that is still listed.
// A stale EditingID (note deleted meanwhile) makes the next submit a create.
func (s State) Editing() bool {
	return s.EditingID != "" && s.IndexOf(s.EditingID) >= 0
}

// SubmitLabel is the text of the form button.
func (s State) SubmitLabel() string {
	if s.EditingID != "" {
		return LabelUpdate
	}
	return LabelAdd
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.Notes = slices.Clone(s.Notes)
	return s
}

// Equal reports whether both snapshots hold the same list and form state.
func (s State) Equal(o State) bool {
	return s.DraftText == o.DraftText && s.EditingID == o.EditingID && slices.Equal(s.Notes, o.Notes)
}

// ApplyLoad replaces the list wholesale. Unpersisted entries are dropped and
// duplicate IDs keep their first position.
func (s State) ApplyLoad(notes []Note) State {
	seen := make(map[string]struct{}, len(notes))
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if !n.Persisted() {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	s.Notes = out
	return s
}

// ApplyCreate drops any entry with the same ID and appends n at the tail.
// Applying the same creation twice yields the same list as applying it once.
func (s State) ApplyCreate(n Note) State {
	if !n.Persisted() {
		return s
	}
	out := make([]Note, 0, len(s.Notes)+1)
	for _, existing := range s.Notes {
		if existing.ID != n.ID {
			out = append(out, existing)
		}
	}
	s.Notes = append(out, n)
	return s
}

// ApplyUpdate replaces the entry with n's ID in place. Unknown IDs are
// dropped rather than inserted, so stale updates cannot resurrect a deleted
// note. A draft targeting the updated note is cleared.
func (s State) ApplyUpdate(n Note) State {
	i := s.IndexOf(n.ID)
	if i < 0 {
		return s
	}
	s.Notes = slices.Clone(s.Notes)
	s.Notes[i] = n
	if s.EditingID == n.ID {
		s.DraftText = ""
		s.EditingID = ""
	}
	return s
}

// ApplyDelete removes the entry with the given ID. Absent IDs are a no-op.
func (s State) ApplyDelete(id string) State {
	i := s.IndexOf(id)
	if i < 0 {
		return s
	}
	s.Notes = slices.Delete(slices.Clone(s.Notes), i, i+1)
	return s
}

// ApplyBeginEdit loads n into the form and targets it for the next submit.
func (s State) ApplyBeginEdit(n Note) State {
	s.DraftText = n.Text
	s.EditingID = n.ID
	return s
}

// ApplyDraft sets the form content.
func (s State) ApplyDraft(text string) State {
	s.DraftText = text
	return s
}

// ApplyClearDraft resets the form to "create" with empty content.
func (s State) ApplyClearDraft() State {
	s.DraftText = ""
	s.EditingID = ""
	return s
}

// ApplyEvent dispatches a push event to the matching reducer.
func (s State) ApplyEvent(e Event) State {
	switch e.Type {
	case EventCreate:
		return s.ApplyCreate(e.Note)
	case EventUpdate:
		return s.ApplyUpdate(e.Note)
	case EventDelete:
		return s.ApplyDelete(e.ID)
	}
	return s
}
