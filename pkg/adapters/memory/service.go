// Package memory provides an in-process RemoteService.
//
// It behaves like the managed backend as far as the reconciler can tell:
// server-assigned IDs, a full listing in insertion order, and a push event on
// every committed change. Error injection fields make failure paths testable.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notetaker/pkg/broker"
	"github.com/aretw0/notetaker/pkg/core"
)

// Service is an in-memory implementation of core.RemoteService.
type Service struct {
	mu     sync.RWMutex
	notes  []core.Note
	broker *broker.Broker
	newID  func() string

	// Error injection for testing
	ListErr      error
	CreateErr    error
	UpdateErr    error
	DeleteErr    error
	SubscribeErr map[core.EventType]error

	// Silent disables push events, as a backend without subscriptions would.
	Silent bool
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithNotes seeds the service.
func WithNotes(notes ...core.Note) Option {
	return func(s *Service) {
		s.notes = append(s.notes, notes...)
	}
}

// NewService creates an empty Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		broker:       broker.New(),
		newID:        uuid.NewString,
		SubscribeErr: make(map[core.EventType]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List implements core.RemoteService.
func (s *Service) List(ctx context.Context) ([]core.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.notes), nil
}

// Create implements core.RemoteService.
func (s *Service) Create(ctx context.Context, text string) (core.Note, error) {
	if err := ctx.Err(); err != nil {
		return core.Note{}, err
	}
	if s.CreateErr != nil {
		return core.Note{}, s.CreateErr
	}

	s.mu.Lock()
	n := core.Note{ID: s.newID(), Text: text}
	s.notes = append(s.notes, n)
	s.mu.Unlock()

	s.publish(core.CreatedEvent(n, time.Now().Unix()))
	return n, nil
}

// Update implements core.RemoteService.
func (s *Service) Update(ctx context.Context, id, text string) (core.Note, error) {
	if err := ctx.Err(); err != nil {
		return core.Note{}, err
	}
	if s.UpdateErr != nil {
		return core.Note{}, s.UpdateErr
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return core.Note{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	s.notes[i].Text = text
	n := s.notes[i]
	s.mu.Unlock()

	s.publish(core.UpdatedEvent(n, time.Now().Unix()))
	return n, nil
}

// Delete implements core.RemoteService.
func (s *Service) Delete(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.DeleteErr != nil {
		return "", s.DeleteErr
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	s.notes = slices.Delete(s.notes, i, i+1)
	s.mu.Unlock()

	s.publish(core.DeletedEvent(id, time.Now().Unix()))
	return id, nil
}

// Subscribe implements core.RemoteService.
func (s *Service) Subscribe(ctx context.Context, t core.EventType) (core.Subscription, error) {
	if err := s.SubscribeErr[t]; err != nil {
		return nil, err
	}
	return s.broker.Subscribe(ctx, t)
}

// Push publishes an arbitrary event without touching the stored notes.
// Tests use it to simulate replays and events from other clients.
func (s *Service) Push(e core.Event) {
	s.broker.Publish(e)
}

// Subscribers returns the number of live subscriptions.
func (s *Service) Subscribers() int {
	return s.broker.Len()
}

// Close releases every subscription.
func (s *Service) Close() error {
	return s.broker.Close()
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "memory"
}

func (s *Service) publish(e core.Event) {
	if s.Silent {
		return
	}
	s.broker.Publish(e)
}

func (s *Service) indexOf(id string) int {
	return slices.IndexFunc(s.notes, func(n core.Note) bool { return n.ID == id })
}
