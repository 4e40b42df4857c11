// Package store owns the local collection of game records and reconciles it
// with updates pushed by the backend.
//
// A Store is the single writer for its collection: every mutation takes the
// store lock, so a merge, import or replace is atomic with respect to the
// others. Readers get deep copies through Snapshot and Get.
package store

import (
	"sync"

	"github.com/thruflo/gamecheck/internal/model"
)

// Store holds the local collection of items in insertion order.
type Store struct {
	mu     sync.RWMutex
	items  []model.Item
	policy Policy
}

// New creates an empty Store that merges with the given policy.
func New(policy Policy) *Store {
	if policy == "" {
		policy = PolicyLastWriteWins
	}
	return &Store{policy: policy}
}

// Policy returns the merge policy of the store.
func (s *Store) Policy() Policy {
	return s.policy
}

// Snapshot returns a deep copy of the collection.
func (s *Store) Snapshot() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

// Len returns the number of items in the collection.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns a copy of the item with the given ID.
func (s *Store) Get(id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.find(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	return model.Item{}, false
}

// Stats recomputes the aggregate counts over the current collection.
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ComputeStats(s.items)
}

// ApplyMerge merges a server push into the collection and returns what
// happened together with the recomputed stats.
func (s *Store) ApplyMerge(incoming []model.Item) (MergeResult, model.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	s.items, res = Merge(s.items, incoming, s.policy)
	return res, model.ComputeStats(s.items)
}

// ApplyImport adds imported items to the collection. Items already present
// get their import-owned fields refreshed and keep their server state.
// Returns the number of items added.
func (s *Store) ApplyImport(items []model.Item) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if i := s.find(it.ID); i >= 0 {
			applyClientFields(&s.items[i], it)
			continue
		}
		s.items = append(s.items, it.Clone())
		added++
	}
	return added
}

// Replace swaps the whole collection for a full-state fetch from the backend.
// Items without an ID are dropped; a repeated ID keeps its first position and
// the last value.
func (s *Store) Replace(items []model.Item) {
	next := make([]model.Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if i, ok := index[it.ID]; ok {
			next[i] = it.Clone()
			continue
		}
		index[it.ID] = len(next)
		next = append(next, it.Clone())
	}

	s.mu.Lock()
	s.items = next
	s.mu.Unlock()
}

// SetSubmissionID records the backend test ID for an item.
// Returns false if the item is unknown.
func (s *Store) SetSubmissionID(id, testID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return false
	}
	s.items[i].SubmissionID = testID
	return true
}

// MarkQueued resets an item to queued ahead of a retry, clearing the
// previous run's error and timing. This is the only way a terminal status
// moves backwards outside of Replace.
func (s *Store) MarkQueued(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(id)
	if i < 0 {
		return false
	}
	s.items[i].Status = model.StatusQueued
	s.items[i].Error = nil
	s.items[i].Timing = model.Timing{}
	return true
}

// find returns the index of id, or -1. Callers must hold the lock.
func (s *Store) find(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
