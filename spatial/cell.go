package spatial

// lattice is a position on the integer grid the index is built on. One
// lattice unit is the extent of the smallest possible cell.
type lattice [3]int64

// entry is an item stored in a leaf with its position and its lattice
// coordinates.
type entry[T comparable] struct {
	item T
	pos  Vector3
	key  lattice
}

// cell is a cubic region [start, start+size) of the lattice. A leaf holds its
// entries in items; an internal cell owns subdivision^3 child slots where
// empty regions are left as noCell.
type cell[T comparable] struct {
	start lattice
	size  int64

	// The number of entries stored in the subtree.
	total int

	items    []entry[T]
	children []cellID

	released bool
}

func (c *cell[T]) isLeaf() bool {
	return len(c.children) == 0
}

func (c *cell[T]) setChildren(n int) {
	if n == 0 {
		c.children = c.children[:0]
		return
	}

	if cap(c.children) < n {
		c.children = make([]cellID, n)
	}
	c.children = c.children[:n]
	for i := range c.children {
		c.children[i] = noCell
	}
}

func (c *cell[T]) contains(k lattice) bool {
	return boxContains(c.start, c.size, k)
}

func boxContains(start lattice, size int64, k lattice) bool {
	for axis := 0; axis < 3; axis++ {
		if k[axis] < start[axis] || k[axis] >= start[axis]+size {
			return false
		}
	}
	return true
}

// find returns the position of the entry with the given item and position in
// the leaf items, or -1.
func (c *cell[T]) find(item T, pos Vector3) int {
	for i := range c.items {
		if c.items[i].item == item && c.items[i].pos == pos {
			return i
		}
	}
	return -1
}

// removeAt removes the entry at i without preserving the order of the
// remaining ones.
func (c *cell[T]) removeAt(i int) {
	last := len(c.items) - 1
	c.items[i] = c.items[last]
	c.items[last] = entry[T]{}
	c.items = c.items[:last]
}

// childIndex returns the child slot that owns k. The mapping is x + S*y +
// S*S*z where each coordinate is the offset of k in child sized steps.
func (c *cell[T]) childIndex(k lattice, subdivision int) int {
	childSize := c.size / int64(subdivision)
	s := int64(subdivision)

	x := (k[0] - c.start[0]) / childSize
	y := (k[1] - c.start[1]) / childSize
	z := (k[2] - c.start[2]) / childSize
	invariant(x >= 0 && x < s && y >= 0 && y < s && z >= 0 && z < s, "position is outside of its cell")
	return int(x + s*(y+s*z))
}

// childStart returns the minimum corner of the child in slot i.
func (c *cell[T]) childStart(i int, subdivision int) lattice {
	childSize := c.size / int64(subdivision)
	s := subdivision
	return lattice{
		c.start[0] + int64(i%s)*childSize,
		c.start[1] + int64((i/s)%s)*childSize,
		c.start[2] + int64(i/(s*s))*childSize,
	}
}

// centerIndex returns the slot of the centered child.
func centerIndex(subdivision int) int {
	c := subdivision / 2
	return c + subdivision*(c+subdivision*c)
}
