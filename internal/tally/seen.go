package tally

import (
	"sync"

	"github.com/frewsxcv/template-tally/internal/types"
)

// SeenSet records the templates a tracker has already claimed for
// persistence. It is safe for concurrent use.
type SeenSet struct {
	mutex sync.Mutex
	ids   map[types.TemplateID]struct{}
}

// NewSeenSet creates an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[types.TemplateID]struct{})}
}

// Claim inserts id and reports whether this call inserted it. Exactly one of
// any number of concurrent claims for the same id returns true.
func (s *SeenSet) Claim(id types.TemplateID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Contains reports whether id has been claimed.
func (s *SeenSet) Contains(id types.TemplateID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.ids[id]
	return ok
}

// Len returns the number of claimed identifiers.
func (s *SeenSet) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.ids)
}

// Reset empties the set.
func (s *SeenSet) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ids = make(map[types.TemplateID]struct{})
}
