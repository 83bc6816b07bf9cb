// Package store holds the application aggregate being edited and notifies
// subscribers after every change.
package store

import (
	"sync"

	"social-support-wizard/internal/models"
)

// Listener receives the aggregate as it is after a change. Listeners run
// synchronously and in registration order; they must not update the store.
type Listener func(models.ApplicationData)

type DataStore struct {
	// writeMu serializes apply+notify so listeners observe changes in order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	data      models.ApplicationData
	listeners []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Listener
}

func New() *DataStore {
	return &DataStore{}
}

// Snapshot returns a copy of the current aggregate.
func (s *DataStore) Snapshot() models.ApplicationData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Subscribe registers fn and returns a function that removes it.
func (s *DataStore) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// UpdatePersonalInfo merges the set fields of patch into personalInfo.
func (s *DataStore) UpdatePersonalInfo(patch models.PersonalInfoPatch) {
	s.apply(func(d *models.ApplicationData) { d.PersonalInfo.Apply(patch) })
}

func (s *DataStore) UpdateFamilyFinancialInfo(patch models.FamilyFinancialInfoPatch) {
	s.apply(func(d *models.ApplicationData) { d.FamilyFinancialInfo.Apply(patch) })
}

func (s *DataStore) UpdateSituationDescriptions(patch models.SituationDescriptionsPatch) {
	s.apply(func(d *models.ApplicationData) { d.SituationDescriptions.Apply(patch) })
}

// Reset replaces the aggregate with the empty one.
func (s *DataStore) Reset() {
	s.apply(func(d *models.ApplicationData) { *d = models.ApplicationData{} })
}

func (s *DataStore) apply(mutate func(*models.ApplicationData)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	mutate(&s.data)
	snapshot := s.data
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
