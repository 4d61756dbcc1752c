package engine

import (
	"fmt"

	. "lob/internal/common"
)

// Location is where a resting order lives. The order handle is the linked
// list node itself and stays valid until that order leaves the book.
type Location struct {
	Side  Side
	Price Price
	order *Order
}

// LocationIndex maps resting order ids to their location for constant time
// cancellation. An id is present exactly while its order rests.
type LocationIndex struct {
	locations map[OrderID]Location
}

func NewLocationIndex() *LocationIndex {
	return &LocationIndex{locations: make(map[OrderID]Location)}
}

// Insert registers an order that begins resting.
func (idx *LocationIndex) Insert(id OrderID, loc Location) error {
	if _, ok := idx.locations[id]; ok {
		return fmt.Errorf("order %d: %w", id, ErrDuplicateOrder)
	}
	idx.locations[id] = loc
	return nil
}

func (idx *LocationIndex) Locate(id OrderID) (Location, bool) {
	loc, ok := idx.locations[id]
	return loc, ok
}

// Erase drops id. Callers erase each id at most once.
func (idx *LocationIndex) Erase(id OrderID) {
	delete(idx.locations, id)
}

func (idx *LocationIndex) Len() int { return len(idx.locations) }
