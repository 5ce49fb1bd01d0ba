// Package filter selects notes with expr-lang expressions, e.g.
//
//	text contains "milk" && lines < 3
//
// Each note is evaluated against these variables: id, text, index (position
// in the list), lines and words.
package filter

import (
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/aretw0/notetaker/pkg/core"
)

// Filter is a compiled boolean expression over a note.
type Filter struct {
	program    *exprvm.Program
	expression string
}

// Compile type-checks expression. An empty expression matches everything.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return &Filter{}, nil
	}

	program, err := exprlang.Compile(expression,
		exprlang.Env(environment(core.Note{}, 0)),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expression, err)
	}
	return &Filter{program: program, expression: expression}, nil
}

// Match reports whether the note at position index satisfies the filter.
func (f *Filter) Match(n core.Note, index int) (bool, error) {
	if f.program == nil {
		return true, nil
	}
	out, err := exprlang.Run(f.program, environment(n, index))
	if err != nil {
		return false, fmt.Errorf("filter %q on %s: %w", f.expression, n.ID, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Apply returns the matching notes, preserving their order.
func (f *Filter) Apply(notes []core.Note) ([]core.Note, error) {
	out := make([]core.Note, 0, len(notes))
	for i, n := range notes {
		ok, err := f.Match(n, i)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func environment(n core.Note, index int) map[string]any {
	lines := 0
	if n.Text != "" {
		lines = strings.Count(strings.TrimRight(n.Text, "\n"), "\n") + 1
	}
	return map[string]any{
		"id":    n.ID,
		"text":  n.Text,
		"index": index,
		"lines": lines,
		"words": len(strings.Fields(n.Text)),
	}
}
