package walk

import (
	"math/rand"
	"sync"
)

// NeighborSelector picks the next node among a non-empty list of candidates.
type NeighborSelector interface {
	Select(candidates []string) string
}

// RandomSelector picks uniformly at random.
type RandomSelector struct {
	sync.Mutex
	rnd *rand.Rand
}

// NewRandomSelector creates a RandomSelector. The same seed yields the same
// sequence of choices.
func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Select implements NeighborSelector.
func (s *RandomSelector) Select(candidates []string) string {
	s.Lock()
	defer s.Unlock()
	return candidates[s.rnd.Intn(len(candidates))]
}

// FirstSelector always picks the first candidate.
type FirstSelector struct{}

// Select implements NeighborSelector.
func (FirstSelector) Select(candidates []string) string {
	return candidates[0]
}
