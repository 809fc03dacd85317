package quiz

import (
	"math/rand"
	"sync"
	"time"
)

// Shuffler performs Fisher-Yates shuffles over a shared random source.
// It is safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

var defaultShuffler = NewShuffler(rand.NewSource(time.Now().UnixNano()))

func NewShuffler(src rand.Source) *Shuffler {
	return &Shuffler{rnd: rand.New(src)}
}

func (s *Shuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := n - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		swap(i, j)
	}
}
