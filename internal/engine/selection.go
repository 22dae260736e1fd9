package engine

import (
	"sort"
	"sync"
)

// Selection is the multi-select mode flag and the set of selected ids.
// Leaving multi-select mode always clears the set.
type Selection struct {
	mu     sync.RWMutex
	active bool
	ids    map[int64]struct{}
}

// NewSelection returns an inactive, empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[int64]struct{})}
}

// Enter turns multi-select mode on.
func (s *Selection) Enter() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

// Exit turns multi-select mode off and clears the set.
func (s *Selection) Exit() {
	s.mu.Lock()
	s.active = false
	s.ids = make(map[int64]struct{})
	s.mu.Unlock()
}

// Active reports whether multi-select mode is on.
func (s *Selection) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Selection) Toggle(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SelectAll selects every visible id, or clears the set when all of them
// are already selected.
func (s *Selection) SelectAll(visible []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(visible) > 0 && len(s.ids) == len(visible) {
		all := true
		for _, id := range visible {
			if _, ok := s.ids[id]; !ok {
				all = false
				break
			}
		}
		if all {
			s.ids = make(map[int64]struct{})
			return
		}
	}

	s.ids = make(map[int64]struct{}, len(visible))
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the set without leaving multi-select mode.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.ids = make(map[int64]struct{})
	s.mu.Unlock()
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the selected ids in ascending order.
func (s *Selection) IDs() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
