package models

import (
	"sort"
	"sync"
)

// SequentialIDGenerator hands out ids starting from 1. Released ids are handed
// out again, lowest first, before new ones are generated.
type SequentialIDGenerator struct {
	mutex    sync.Mutex
	lastID   uint32
	released []uint32
}

// New returns the lowest released id or, when none is available, the next
// never used id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.released) != 0 {
		id := g.released[0]
		g.released = g.released[1:]
		return id
	}

	g.lastID++
	return g.lastID
}

// Reuse releases the given id so it can be returned by New. Ids that were
// never generated or that are already released are ignored.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id == 0 || id > g.lastID {
		return
	}

	i := sort.Search(len(g.released), func(i int) bool {
		return g.released[i] >= id
	})
	if i < len(g.released) && g.released[i] == id {
		return
	}

	g.released = append(g.released, 0)
	copy(g.released[i+1:], g.released[i:])
	g.released[i] = id
}

// Released returns the number of ids waiting to be reused.
func (g *SequentialIDGenerator) Released() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.released)
}
