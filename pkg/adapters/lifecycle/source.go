// Package lifecycle exposes the reconciler change feed as a lifecycle.Source.
package lifecycle

import (
	"context"
	"errors"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notetaker/pkg/core"
)

// Feed is anything publishing applied note changes, such as *core.Reconciler.
type Feed interface {
	Changes() <-chan core.Event
}

type changeSource struct {
	feed    Feed
	out     chan lifecycle.Event
	started bool
}

// NewSource creates a lifecycle.Source emitting one event per change applied
// to the note list. The source ends when the feed is closed or ctx is done.
func NewSource(feed Feed) lifecycle.Source {
	return &changeSource{
		feed: feed,
		out:  make(chan lifecycle.Event),
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	if s.started {
		return errors.New("source already started")
	}
	s.started = true

	changes := s.feed.Changes()
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-changes:
				if !ok {
					return nil
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
