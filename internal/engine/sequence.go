package engine

import (
	"sync/atomic"

	. "lob/internal/common"
)

// IDGenerator hands out order identifiers. Implementations must be monotonic
// and never return the same id twice.
type IDGenerator interface {
	Next() OrderID
}

// Sequence is a plain counter owned by a single kernel.
type Sequence struct {
	next OrderID
}

// NewSequence starts counting at first; zero starts at 1.
func NewSequence(first OrderID) *Sequence {
	if first == 0 {
		first = 1
	}
	return &Sequence{next: first}
}

func (s *Sequence) Next() OrderID {
	id := s.next
	s.next++
	return id
}

// SharedSequence may be passed to several kernels that share one id space.
type SharedSequence struct {
	last atomic.Uint64
}

// NewSharedSequence returns a generator whose first id is first (or 1).
func NewSharedSequence(first OrderID) *SharedSequence {
	if first == 0 {
		first = 1
	}
	s := &SharedSequence{}
	s.last.Store(uint64(first) - 1)
	return s
}

func (s *SharedSequence) Next() OrderID {
	return OrderID(s.last.Add(1))
}
