package spatial

// cellID addresses a cell in a CellPool.
type cellID int32

const noCell cellID = -1

// PoolStats describes the state of a cell pool.
type PoolStats struct {
	// The number of cells currently in use.
	Live int `json:"live"`

	// The number of released cells waiting to be reused.
	Free int `json:"free"`

	// The number of cells ever allocated by the pool.
	Allocated int `json:"allocated"`

	// The number of Get and Put calls.
	Gets uint64 `json:"gets"`
	Puts uint64 `json:"puts"`
}

// CellPool stores cells in a contiguous arena and recycles released slots
// through a free list, so structural changes of an index do not allocate once
// the pool is warm.
//
// A pool can be shared by several indices as long as they are all used from
// the same goroutine. It is not safe for concurrent use.
type CellPool[T comparable] struct {
	cells []cell[T]
	free  []cellID

	gets uint64
	puts uint64
}

func NewCellPool[T comparable]() *CellPool[T] {
	return &CellPool[T]{}
}

// Stats returns the pool usage counters.
func (p *CellPool[T]) Stats() PoolStats {
	return PoolStats{
		Live:      len(p.cells) - len(p.free),
		Free:      len(p.free),
		Allocated: len(p.cells),
		Gets:      p.gets,
		Puts:      p.puts,
	}
}

// at returns the cell with the given id. The returned pointer is only valid
// until the next call to get since the arena may be reallocated.
func (p *CellPool[T]) at(id cellID) *cell[T] {
	return &p.cells[id]
}

// get returns a reset cell with the given bounds. A positive children count
// makes it an internal cell with that many empty child slots.
func (p *CellPool[T]) get(start lattice, size int64, children int) cellID {
	p.gets++

	var id cellID
	if n := len(p.free); n != 0 {
		id = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.cells = append(p.cells, cell[T]{})
		id = cellID(len(p.cells) - 1)
	}

	c := &p.cells[id]
	c.start = start
	c.size = size
	c.total = 0
	c.released = false
	c.items = c.items[:0]
	c.setChildren(children)
	return id
}

// put releases the cell and all its live descendants. Item and child
// references are cleared so released cells do not retain anything.
func (p *CellPool[T]) put(id cellID) {
	c := &p.cells[id]
	invariant(!c.released, "cell released twice")

	for i, child := range c.children {
		if child != noCell {
			p.put(child)
		}
		// put does not append to the arena, c stays valid.
		c.children[i] = noCell
	}
	c.children = c.children[:0]

	clear(c.items)
	c.items = c.items[:0]
	c.total = 0
	c.released = true

	p.puts++
	p.free = append(p.free, id)
}
