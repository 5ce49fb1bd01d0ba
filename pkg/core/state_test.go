package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/notetaker/pkg/core"
)

func TestState_Lifecycle(t *testing.T) {
	var s core.State

	s = s.ApplyCreate(core.Note{ID: "1", Text: "a"})
	assert.Equal(t, []core.Note{{ID: "1", Text: "a"}}, s.Notes)

	s = s.ApplyUpdate(core.Note{ID: "1", Text: "b"})
	assert.Equal(t, []core.Note{{ID: "1", Text: "b"}}, s.Notes)

	s = s.ApplyDelete("1")
	assert.Empty(t, s.Notes)
}

func TestState_ApplyLoad(t *testing.T) {
	t.Run("Empty Remote Set", func(t *testing.T) {
		s := core.State{Notes: []core.Note{{ID: "old", Text: "stale"}}}.ApplyLoad(nil)
		assert.Empty(t, s.Notes)
	})

	t.Run("Keeps Order And Drops Duplicates", func(t *testing.T) {
		s := core.State{}.ApplyLoad([]core.Note{
			{ID: "2", Text: "b"},
			{ID: "1", Text: "a"},
			{ID: "2", Text: "dup"},
			{Text: "unsaved"},
		})
		assert.Equal(t, []core.Note{{ID: "2", Text: "b"}, {ID: "1", Text: "a"}}, s.Notes)
	})

	t.Run("Keeps Form State", func(t *testing.T) {
		s := core.State{DraftText: "wip", EditingID: "1"}.ApplyLoad([]core.Note{{ID: "1", Text: "a"}})
		assert.Equal(t, "wip", s.DraftText)
		assert.Equal(t, "1", s.EditingID)
	})
}

func TestState_ApplyCreate(t *testing.T) {
	base := core.State{Notes: []core.Note{{ID: "1", Text: "a"}}}
	n := core.Note{ID: "2", Text: "b"}

	once := base.ApplyCreate(n)
	twice := once.ApplyCreate(n)

	assert.Equal(t, once.Notes, twice.Notes, "replayed creation must be idempotent")
	assert.Equal(t, []core.Note{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}, twice.Notes)

	t.Run("Appends In Arrival Order", func(t *testing.T) {
		s := core.State{}.
			ApplyCreate(core.Note{ID: "z", Text: "first"}).
			ApplyCreate(core.Note{ID: "a", Text: "second"})
		assert.Equal(t, "z", s.Notes[0].ID)
		assert.Equal(t, "a", s.Notes[1].ID)
	})

	t.Run("Replay Moves Entry To Tail", func(t *testing.T) {
		s := core.State{Notes: []core.Note{{ID: "1"}, {ID: "2"}}}.ApplyCreate(core.Note{ID: "1", Text: "again"})
		assert.Equal(t, []core.Note{{ID: "2"}, {ID: "1", Text: "again"}}, s.Notes)
	})

	t.Run("Ignores Unpersisted Note", func(t *testing.T) {
		s := base.ApplyCreate(core.Note{Text: "no id"})
		assert.Equal(t, base.Notes, s.Notes)
	})
}

func TestState_ApplyUpdate(t *testing.T) {
	base := core.State{Notes: []core.Note{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}}

	t.Run("Unknown ID Is No-Op", func(t *testing.T) {
		s := base.ApplyUpdate(core.Note{ID: "3", Text: "x"})
		assert.Len(t, s.Notes, 2)
		assert.Equal(t, base.Notes, s.Notes)
	})

	t.Run("Replaces In Place", func(t *testing.T) {
		s := base.ApplyUpdate(core.Note{ID: "1", Text: "changed"})
		assert.Equal(t, []core.Note{{ID: "1", Text: "changed"}, {ID: "2", Text: "b"}}, s.Notes)
	})

	t.Run("Clears Matching Draft", func(t *testing.T) {
		editing := base.ApplyBeginEdit(base.Notes[1])
		s := editing.ApplyUpdate(core.Note{ID: "2", Text: "done"})
		assert.Empty(t, s.DraftText)
		assert.Empty(t, s.EditingID)
	})

	t.Run("Keeps Unrelated Draft", func(t *testing.T) {
		editing := base.ApplyBeginEdit(base.Notes[1])
		s := editing.ApplyUpdate(core.Note{ID: "1", Text: "other"})
		assert.Equal(t, "b", s.DraftText)
		assert.Equal(t, "2", s.EditingID)
	})
}

func TestState_ApplyDelete(t *testing.T) {
	base := core.State{Notes: []core.Note{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}}

	s := base.ApplyDelete("404")
	assert.Equal(t, base.Notes, s.Notes)

	s = base.ApplyDelete("1")
	assert.Equal(t, []core.Note{{ID: "2", Text: "b"}}, s.Notes)
	assert.Equal(t, s.Notes, s.ApplyDelete("1").Notes, "replayed deletion must be idempotent")
}

func TestState_Immutability(t *testing.T) {
	base := core.State{Notes: []core.Note{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}}
	before := base.Clone()

	_ = base.ApplyUpdate(core.Note{ID: "1", Text: "x"})
	_ = base.ApplyDelete("2")
	_ = base.ApplyCreate(core.Note{ID: "3"})

	assert.True(t, base.Equal(before), "reducers must not alter their input")
}

func TestState_Editing(t *testing.T) {
	s := core.State{Notes: []core.Note{{ID: "1", Text: "a"}}}
	assert.False(t, s.Editing())
	assert.Equal(t, core.LabelAdd, s.SubmitLabel())

	s = s.ApplyBeginEdit(s.Notes[0])
	assert.True(t, s.Editing())
	assert.Equal(t, core.LabelUpdate, s.SubmitLabel())
	assert.Equal(t, "a", s.DraftText)

	s = s.ApplyDelete("1")
	assert.False(t, s.Editing(), "edit target vanished, next submit creates")
}

func TestState_ApplyEvent(t *testing.T) {
	s := core.State{}
	s = s.ApplyEvent(core.CreatedEvent(core.Note{ID: "1", Text: "a"}, 0))
	s = s.ApplyEvent(core.UpdatedEvent(core.Note{ID: "1", Text: "b"}, 0))
	assert.Equal(t, []core.Note{{ID: "1", Text: "b"}}, s.Notes)
	s = s.ApplyEvent(core.DeletedEvent("1", 0))
	assert.Empty(t, s.Notes)
	s = s.ApplyEvent(core.Event{Type: core.EventLoad})
	assert.Empty(t, s.Notes)
}
