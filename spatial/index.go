// Package spatial implements a sparse, auto-resizing grid that indexes items
// by 3D position and answers volumetric range queries.
//
// The grid is a tree of cubic cells. A leaf holds items directly and is split
// into Subdivision^3 children once it holds too many of them; children that
// would be empty are never created. The root grows when an item is added out
// of its bounds and shrinks back when the content fits in its centered child
// again.
//
// Positions are snapped once onto an integer lattice whose unit is a power of
// two. All the tree arithmetic runs on that lattice so that insertion and
// lookup always agree, and cell bounds handed to shapes are exact.
package spatial

import (
	"iter"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// Points are limited to this many lattice units away from the origin and
	// cells to maxCellCoord, which keeps every cell bound exactly
	// representable as a float64.
	maxPointCoord = 1 << 50
	maxCellCoord  = 1 << 53
)

// Index maps items to 3D positions.
//
// An index is not safe for concurrent use. Mutating an index while a Cast
// created from it is being iterated is forbidden and gives undefined results;
// restart the cast after the mutation instead.
type Index[T comparable] struct {
	pool *CellPool[T]
	root cellID

	unit            float64
	subdivision     int
	children        int
	center          int
	splitThreshold  int
	mergeThreshold  int
	allowDuplicates bool

	initialStart lattice
	initialSize  int64

	path []pathStep
}

// pathStep is a cell visited while descending the tree along with its slot
// in its parent.
type pathStep struct {
	id   cellID
	slot int
}

// New creates an index that owns its cell pool.
func New[T comparable](opts Options) (*Index[T], error) {
	return NewWithPool(NewCellPool[T](), opts)
}

// NewWithPool creates an index that takes its cells from the given pool.
func NewWithPool[T comparable](pool *CellPool[T], opts Options) (*Index[T], error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if pool == nil {
		pool = NewCellPool[T]()
	}

	size, _ := cellsPerAxis(opts.Subdivision, opts.Depth)
	x := &Index[T]{
		pool:            pool,
		unit:            latticeUnit(opts.Size, size),
		subdivision:     opts.Subdivision,
		children:        opts.Subdivision * opts.Subdivision * opts.Subdivision,
		center:          centerIndex(opts.Subdivision),
		splitThreshold:  opts.SplitThreshold,
		mergeThreshold:  opts.MergeThreshold,
		allowDuplicates: opts.AllowDuplicates,
		initialSize:     size,
	}

	start, ok := x.quantize(opts.Offset)
	if !ok {
		return nil, errors.New("offset is out of range").
			WithType(ErrTypeOutOfRange).
			WithTag("offset", opts.Offset).
			WithTag("size", opts.Size)
	}
	x.initialStart = start
	x.root = pool.get(start, size, 0)
	return x, nil
}

// Count returns the number of stored entries.
func (x *Index[T]) Count() int {
	return x.pool.at(x.root).total
}

// Bounds returns the region covered by the root cell. The maximum corner is
// exclusive.
func (x *Index[T]) Bounds() AABB {
	min, max := x.cellBounds(x.root)
	return AABB{Min: min, Max: max}
}

// Add stores item at position. When duplicates are not allowed, adding a pair
// that is already stored leaves the index unchanged.
func (x *Index[T]) Add(item T, position Vector3) error {
	var zero T
	if item == zero {
		return errZeroItem()
	}

	k, err := x.key(position)
	if err != nil {
		return err
	}

	if !x.growToFit(k, k) {
		return errPositionOutOfRange(position)
	}

	if !x.allowDuplicates && x.lookup(item, position, k) {
		return nil
	}

	x.insert(entry[T]{item: item, pos: position, key: k})
	return nil
}

// AddRange stores items at their respective positions. The root is grown
// once to fit all the positions before inserting. Nothing is stored when an
// argument is invalid.
func (x *Index[T]) AddRange(items []T, positions []Vector3) error {
	if len(items) != len(positions) {
		return errors.New("items and positions have different lengths").
			WithType(ErrTypeInvalidArgument).
			WithTag("items", len(items)).
			WithTag("positions", len(positions))
	}

	if len(items) == 0 {
		return nil
	}

	var zero T
	var min, max lattice
	for i := range items {
		if items[i] == zero {
			return errZeroItem()
		}

		k, err := x.key(positions[i])
		if err != nil {
			return err
		}

		if i == 0 {
			min, max = k, k
			continue
		}
		for axis := range k {
			if k[axis] < min[axis] {
				min[axis] = k[axis]
			}
			if k[axis] > max[axis] {
				max[axis] = k[axis]
			}
		}
	}

	if !x.growToFit(min, max) {
		return errors.New("positions are out of range").
			WithType(ErrTypeOutOfRange).
			WithTag("items", len(items))
	}

	for i := range items {
		k, _ := x.quantize(positions[i])
		if !x.allowDuplicates && x.lookup(items[i], positions[i], k) {
			continue
		}
		x.insert(entry[T]{item: items[i], pos: positions[i], key: k})
	}
	return nil
}

// Remove removes one entry of item at position and reports whether it was
// found.
func (x *Index[T]) Remove(item T, position Vector3) bool {
	k, ok := x.readKey(item, position)
	if !ok {
		return false
	}

	if !x.removeEntry(item, position, k) {
		return false
	}

	x.shrinkToFit()
	return true
}

// Contains reports whether item is stored at position.
func (x *Index[T]) Contains(item T, position Vector3) bool {
	k, ok := x.readKey(item, position)
	if !ok {
		return false
	}
	return x.lookup(item, position, k)
}

// MoveItem moves item from one position to another. It reports false and
// leaves the index unchanged when item is not stored at from.
//
// The outcome is the same as removing the item at from and adding it at to.
func (x *Index[T]) MoveItem(item T, from, to Vector3) (bool, error) {
	var zero T
	if item == zero {
		return false, errZeroItem()
	}

	toKey, err := x.key(to)
	if err != nil {
		return false, err
	}

	fromKey, ok := x.readKey(item, from)
	if !ok || !x.lookup(item, from, fromKey) {
		return false, nil
	}

	if !x.growToFit(toKey, toKey) {
		return false, errPositionOutOfRange(to)
	}

	x.relocate(item, from, fromKey, to, toKey)
	x.shrinkToFit()
	return true, nil
}

// Clear removes all the entries. The root gets back to its initial bounds.
func (x *Index[T]) Clear() {
	x.pool.put(x.root)
	x.root = x.pool.get(x.initialStart, x.initialSize, 0)
}

// All returns every stored entry. The order is unspecified.
func (x *Index[T]) All() iter.Seq2[T, Vector3] {
	return func(yield func(T, Vector3) bool) {
		c := NewShapeCast(x, everywhere{})
		for c.Next() {
			if !yield(c.Item(), c.Position()) {
				return
			}
		}
	}
}

func (x *Index[T]) key(p Vector3) (lattice, error) {
	if !p.IsFinite() {
		return lattice{}, errInvalidPosition(p)
	}

	k, ok := x.quantize(p)
	if !ok {
		return k, errPositionOutOfRange(p)
	}
	return k, nil
}

// readKey is the permissive version of key used by read paths.
func (x *Index[T]) readKey(item T, p Vector3) (lattice, bool) {
	var zero T
	if item == zero || !p.IsFinite() {
		return lattice{}, false
	}
	return x.quantize(p)
}

// quantize returns the lattice coordinates k of p such that
// k*unit <= p < (k+1)*unit on each axis.
func (x *Index[T]) quantize(p Vector3) (lattice, bool) {
	var k lattice
	for axis, v := range [3]float64{p.X, p.Y, p.Z} {
		f := math.Floor(v / x.unit)
		if !(math.Abs(f) < maxPointCoord) {
			return k, false
		}

		i := int64(f)
		if float64(i)*x.unit > v {
			i--
		} else if float64(i+1)*x.unit <= v {
			i++
		}
		k[axis] = i
	}
	return k, true
}

func (x *Index[T]) cellBounds(id cellID) (Vector3, Vector3) {
	c := x.pool.at(id)
	min := Vector3{
		X: float64(c.start[0]) * x.unit,
		Y: float64(c.start[1]) * x.unit,
		Z: float64(c.start[2]) * x.unit,
	}
	max := Vector3{
		X: float64(c.start[0]+c.size) * x.unit,
		Y: float64(c.start[1]+c.size) * x.unit,
		Z: float64(c.start[2]+c.size) * x.unit,
	}
	return min, max
}

// growToFit grows the root until it contains both lattice corners. When the
// lattice range is exhausted, the growth is undone and false is returned.
func (x *Index[T]) growToFit(min, max lattice) bool {
	for {
		r := x.pool.at(x.root)
		if r.contains(min) && r.contains(max) {
			return true
		}

		if !x.growOnce() {
			x.shrinkToFit()
			return false
		}
	}
}

// growOnce multiplies the root extent by the subdivision factor, keeping the
// previous root as the centered child of the new one. A leaf root is widened
// in place.
func (x *Index[T]) growOnce() bool {
	r := x.pool.at(x.root)
	size := r.size * int64(x.subdivision)
	offset := r.size * int64(x.subdivision/2)

	var start lattice
	for axis := range start {
		start[axis] = r.start[axis] - offset
		if start[axis] < -maxCellCoord || start[axis]+size > maxCellCoord {
			return false
		}
	}

	if r.isLeaf() {
		r.start = start
		r.size = size
		return true
	}

	total := r.total
	previous := x.root
	x.root = x.pool.get(start, size, x.children)

	root := x.pool.at(x.root)
	root.children[x.center] = previous
	root.total = total
	return true
}

func (x *Index[T]) shrinkToFit() {
	for x.shrinkOnce() {
	}
}

// shrinkOnce replaces the root by its centered child when all the content fits
// in it, without going below the initial size.
func (x *Index[T]) shrinkOnce() bool {
	r := x.pool.at(x.root)
	if r.size <= x.initialSize {
		return false
	}

	size := r.size / int64(x.subdivision)
	start := r.childStart(x.center, x.subdivision)

	if r.isLeaf() {
		for i := range r.items {
			if !boxContains(start, size, r.items[i].key) {
				return false
			}
		}
		r.start = start
		r.size = size
		return true
	}

	for slot, child := range r.children {
		if slot != x.center && child != noCell {
			return false
		}
	}

	center := r.children[x.center]
	invariant(center != noCell, "internal root without children")

	r.children[x.center] = noCell
	previous := x.root
	x.root = center
	x.pool.put(previous)
	return true
}

// insert places e in the tree. The root must contain e.key.
func (x *Index[T]) insert(e entry[T]) {
	id := x.root
	for {
		c := x.pool.at(id)
		c.total++

		if c.isLeaf() {
			if len(c.items) < x.splitThreshold || c.size < int64(x.subdivision) {
				c.items = append(c.items, e)
				return
			}
			x.subdivide(id)
			c = x.pool.at(id)
		}

		slot := c.childIndex(e.key, x.subdivision)
		child := c.children[slot]
		if child == noCell {
			child = x.newChild(id, slot)
		}
		id = child
	}
}

// newChild creates the child of parent at slot.
func (x *Index[T]) newChild(parent cellID, slot int) cellID {
	p := x.pool.at(parent)
	start := p.childStart(slot, x.subdivision)
	size := p.size / int64(x.subdivision)

	child := x.pool.get(start, size, 0)
	x.pool.at(parent).children[slot] = child
	return child
}

// subdivide turns a leaf into an internal cell and moves its entries into the
// matching children.
func (x *Index[T]) subdivide(id cellID) {
	c := x.pool.at(id)
	items := c.items
	c.items = nil
	c.setChildren(x.children)

	for i := range items {
		c := x.pool.at(id)
		slot := c.childIndex(items[i].key, x.subdivision)
		child := c.children[slot]
		if child == noCell {
			child = x.newChild(id, slot)
		}

		ch := x.pool.at(child)
		ch.items = append(ch.items, items[i])
		ch.total++
	}

	clear(items)
	x.pool.at(id).items = items[:0]
}

// descend walks from the root to the leaf that owns k and records the visited
// cells in x.path. It returns false when that leaf does not exist.
func (x *Index[T]) descend(k lattice) bool {
	x.path = x.path[:0]
	if !x.pool.at(x.root).contains(k) {
		return false
	}

	id, slot := x.root, -1
	for {
		x.path = append(x.path, pathStep{id: id, slot: slot})

		c := x.pool.at(id)
		if c.isLeaf() {
			return true
		}

		slot = c.childIndex(k, x.subdivision)
		id = c.children[slot]
		if id == noCell {
			return false
		}
	}
}

func (x *Index[T]) leaf() *cell[T] {
	return x.pool.at(x.path[len(x.path)-1].id)
}

func (x *Index[T]) lookup(item T, pos Vector3, k lattice) bool {
	return x.descend(k) && x.leaf().find(item, pos) >= 0
}

func (x *Index[T]) removeEntry(item T, pos Vector3, k lattice) bool {
	if !x.descend(k) {
		return false
	}

	leaf := x.leaf()
	i := leaf.find(item, pos)
	if i < 0 {
		return false
	}
	leaf.removeAt(i)

	for _, step := range x.path {
		x.pool.at(step.id).total--
	}
	x.compact()
	return true
}

// compact releases or merges the topmost cell of the recorded path that became
// empty or small enough to be a leaf again.
func (x *Index[T]) compact() {
	for depth, step := range x.path {
		c := x.pool.at(step.id)

		if c.total == 0 && depth > 0 {
			parent := x.pool.at(x.path[depth-1].id)
			parent.children[step.slot] = noCell
			x.pool.put(step.id)
			return
		}

		if !c.isLeaf() && c.total <= x.mergeThreshold {
			x.merge(step.id)
			return
		}
	}
}

// merge collapses the subtree of an internal cell into a single leaf.
func (x *Index[T]) merge(id cellID) {
	c := x.pool.at(id)
	items := c.items[:0]
	for _, child := range c.children {
		if child != noCell {
			items = x.gather(child, items)
		}
	}

	for slot, child := range c.children {
		if child != noCell {
			x.pool.put(child)
			c.children[slot] = noCell
		}
	}
	c.setChildren(0)
	c.items = items
	invariant(len(c.items) == c.total, "merged cell count mismatch")
}

func (x *Index[T]) gather(id cellID, dst []entry[T]) []entry[T] {
	c := x.pool.at(id)
	if c.isLeaf() {
		return append(dst, c.items...)
	}

	for _, child := range c.children {
		if child != noCell {
			dst = x.gather(child, dst)
		}
	}
	return dst
}

// relocate moves an existing entry. Both keys must be inside the root.
func (x *Index[T]) relocate(item T, from Vector3, fromKey lattice, to Vector3, toKey lattice) {
	if from == to {
		return
	}

	if !x.allowDuplicates && x.lookup(item, to, toKey) {
		// Adding would be a no-op, only the removal is observable.
		x.removeEntry(item, from, fromKey)
		return
	}

	x.descend(fromKey)
	leaf := x.leaf()
	if leaf.contains(toKey) {
		i := leaf.find(item, from)
		leaf.items[i].pos = to
		leaf.items[i].key = toKey
		return
	}

	x.removeEntry(item, from, fromKey)
	x.insert(entry[T]{item: item, pos: to, key: toKey})
}
