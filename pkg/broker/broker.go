// Package broker fans push events out to subscribers.
//
// Each subscription owns an unbounded queue drained by its own goroutine, so
// a slow consumer never blocks the publisher or the other subscribers, and
// every subscriber sees events in publish order. Events are numbered as they
// are published, so consumers of several streams can restore that order.
package broker

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notetaker/pkg/core"
)

// Broker distributes events to the subscriptions registered for their type.
type Broker struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	seq    uint64
	closed bool
}

// New creates an empty Broker.
func New() *Broker {
	return &Broker{subs: make(map[*subscription]struct{})}
}

// Subscribe registers a subscription for t. It is released by Close, by
// cancellation of ctx, or when the broker itself is closed.
func (b *Broker) Subscribe(ctx context.Context, t core.EventType) (core.Subscription, error) {
	if !t.Valid() {
		return nil, core.ErrUnsupportedEvent
	}

	s := &subscription{
		broker: b,
		typ:    t,
		out:    make(chan core.Event),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, core.ErrClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		s.pump(ctx)
		return nil
	})
	return s, nil
}

// Publish enqueues e on every subscription of its type. Events without a
// sequence number get the next one.
func (b *Broker) Publish(e core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.Seq == 0 {
		b.seq++
		e.Seq = b.seq
	} else {
		b.seq = max(b.seq, e.Seq)
	}
	for s := range b.subs {
		if s.typ == e.Type {
			s.enqueue(e)
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close releases every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

func (b *Broker) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

type subscription struct {
	broker *Broker
	typ    core.EventType

	mu    sync.Mutex
	queue []core.Event

	out  chan core.Event
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *subscription) Events() <-chan core.Event {
	return s.out
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
	return nil
}

func (s *subscription) enqueue(e core.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) next() (core.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return core.Event{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true
}

// pump moves queued events to out until the subscription is released.
func (s *subscription) pump(ctx context.Context) {
	defer close(s.out)
	defer s.Close()
	for {
		e, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		select {
		case s.out <- e:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
