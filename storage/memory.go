package storage

import (
	"context"
	"sync"

	"orthrus/core"
)

// InMemoryEventStore keeps events in process memory, in insertion order.
// The default backend: nothing survives a restart.
type InMemoryEventStore struct {
	observerList
	mu     sync.RWMutex
	events []core.Event
}

// NewInMemoryEventStore creates an empty in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

// AddEvent stores an event and notifies observers.
func (s *InMemoryEventStore) AddEvent(_ context.Context, event *core.Event) error {
	s.mu.Lock()
	s.events = append(s.events, *event)
	s.mu.Unlock()

	s.notifyEvent(*event)
	return nil
}

// FindEvents returns events matching the criteria, in insertion order.
func (s *InMemoryEventStore) FindEvents(_ context.Context, criteria SearchCriteria) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []core.Event
	for _, e := range s.events {
		if criteria.matches(e.DetectionPointID, e.ClientApplication, e.Username, e.Timestamp) {
			found = append(found, e)
		}
	}
	return found, nil
}

// InMemoryAttackStore keeps attacks in process memory, in insertion order.
type InMemoryAttackStore struct {
	observerList
	mu      sync.RWMutex
	attacks []core.Attack
}

// NewInMemoryAttackStore creates an empty in-memory attack store.
func NewInMemoryAttackStore() *InMemoryAttackStore {
	return &InMemoryAttackStore{}
}

// AddAttack stores an attack and notifies observers.
func (s *InMemoryAttackStore) AddAttack(_ context.Context, attack *core.Attack) error {
	s.mu.Lock()
	s.attacks = append(s.attacks, *attack)
	s.mu.Unlock()

	s.notifyAttack(*attack)
	return nil
}

// FindAttacks returns attacks matching the criteria, in insertion order.
func (s *InMemoryAttackStore) FindAttacks(_ context.Context, criteria SearchCriteria) ([]core.Attack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []core.Attack
	for _, a := range s.attacks {
		if criteria.matches(a.DetectionPointID, a.ClientApplication, a.Username, a.Timestamp) {
			found = append(found, a)
		}
	}
	return found, nil
}

// InMemoryResponseStore keeps response records in process memory, in
// insertion order.
type InMemoryResponseStore struct {
	observerList
	mu        sync.RWMutex
	responses []core.ResponseRecord
}

// NewInMemoryResponseStore creates an empty in-memory response store.
func NewInMemoryResponseStore() *InMemoryResponseStore {
	return &InMemoryResponseStore{}
}

// AddResponse stores a response record and notifies observers.
func (s *InMemoryResponseStore) AddResponse(_ context.Context, response *core.ResponseRecord) error {
	s.mu.Lock()
	s.responses = append(s.responses, *response)
	s.mu.Unlock()

	s.notifyResponse(*response)
	return nil
}

// FindResponses returns response records matching the criteria, in
// insertion order.
func (s *InMemoryResponseStore) FindResponses(_ context.Context, criteria SearchCriteria) ([]core.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []core.ResponseRecord
	for _, r := range s.responses {
		if criteria.matches(r.DetectionPointID, r.ClientApplication, r.Username, r.Timestamp) {
			found = append(found, r)
		}
	}
	return found, nil
}
