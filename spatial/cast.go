package spatial

import "iter"

// Cast is a restartable range query over an index. An inclusion cast yields
// the items whose position is inside its shape, an inverse cast the ones
// whose position is outside of it.
//
// A cast walks the tree with an explicit stack and only moves forward when
// Next is called, so it can be abandoned at any time. Restart rebinds it to a
// new shape without allocating, which makes it suited to queries repeated
// every frame:
//
//	cast := spatial.NewShapeCast(index, spatial.Sphere{Radius: 2})
//	for _, p := range players {
//		cast.Restart(spatial.Sphere{Center: p.Position, Radius: 2})
//		for cast.Next() {
//			notify(p, cast.Item())
//		}
//	}
//
// The index must not be mutated while a cast is iterated. A cast is not safe
// for concurrent use.
type Cast[T comparable, S Shape] struct {
	index   *Index[T]
	shape   S
	inverse bool

	// Disables yielding whole cells without testing their items.
	noFastPath bool

	stack []castFrame

	// The leaf being scanned.
	items []entry[T]
	next  int
	whole bool

	current entry[T]
}

type castFrame struct {
	id    cellID
	child int

	// Whether every item of the subtree matches.
	whole bool
}

type cellMatch int

const (
	matchNone cellMatch = iota
	matchSome
	matchAll
)

// NewShapeCast returns a cast that yields the items inside shape.
func NewShapeCast[T comparable, S Shape](x *Index[T], shape S) *Cast[T, S] {
	c := &Cast[T, S]{index: x, shape: shape}
	c.Reset()
	return c
}

// NewInverseShapeCast returns a cast that yields the items outside of shape.
func NewInverseShapeCast[T comparable, S Shape](x *Index[T], shape S) *Cast[T, S] {
	c := &Cast[T, S]{index: x, shape: shape, inverse: true}
	c.Reset()
	return c
}

// Shape returns the shape the cast is bound to.
func (c *Cast[T, S]) Shape() S {
	return c.shape
}

// Restart binds the cast to a new shape and rewinds it to the current root of
// its index.
func (c *Cast[T, S]) Restart(shape S) {
	c.shape = shape
	c.Reset()
}

// Reset rewinds the cast to the current root of its index.
func (c *Cast[T, S]) Reset() {
	c.stack = c.stack[:0]
	c.items = nil
	c.next = 0
	c.whole = false
	c.current = entry[T]{}

	root := c.index.root
	switch m := c.match(root); m {
	case matchSome, matchAll:
		c.stack = append(c.stack, castFrame{id: root, whole: m == matchAll})
	}
}

// Next advances to the next matching item and reports whether there is one.
func (c *Cast[T, S]) Next() bool {
	pool := c.index.pool

	for {
		for c.next < len(c.items) {
			e := c.items[c.next]
			c.next++
			if c.whole || c.containsPoint(e.pos) {
				c.current = e
				return true
			}
		}
		c.items = nil

		n := len(c.stack)
		if n == 0 {
			return false
		}

		f := &c.stack[n-1]
		cell := pool.at(f.id)
		if cell.isLeaf() {
			c.stack = c.stack[:n-1]
			c.items = cell.items
			c.next = 0
			c.whole = f.whole
			continue
		}

		pushed := false
		for f.child < len(cell.children) {
			child := cell.children[f.child]
			f.child++
			if child == noCell {
				continue
			}

			m := matchAll
			if !f.whole {
				m = c.match(child)
			}
			if m == matchNone {
				continue
			}

			c.stack = append(c.stack, castFrame{id: child, whole: m == matchAll})
			pushed = true
			break
		}

		if !pushed {
			c.stack = c.stack[:n-1]
		}
	}
}

// Item returns the item found by the last call to Next.
func (c *Cast[T, S]) Item() T {
	return c.current.item
}

// Position returns the position of the item found by the last call to Next.
func (c *Cast[T, S]) Position() Vector3 {
	return c.current.pos
}

// All returns the items the cast has not yielded yet.
func (c *Cast[T, S]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for c.Next() {
			if !yield(c.Item()) {
				return
			}
		}
	}
}

// AppendTo appends the items the cast has not yielded yet to dst.
func (c *Cast[T, S]) AppendTo(dst []T) []T {
	for c.Next() {
		dst = append(dst, c.Item())
	}
	return dst
}

func (c *Cast[T, S]) containsPoint(p Vector3) bool {
	return c.shape.ContainsPoint(p) != c.inverse
}

// match classifies the items of a cell subtree against the query.
func (c *Cast[T, S]) match(id cellID) cellMatch {
	min, max := c.index.cellBounds(id)

	var none, all bool
	if c.inverse {
		none = c.shape.ContainsAabb(min, max)
		all = !none && !c.shape.IntersectsAabb(min, max)
	} else {
		none = !c.shape.IntersectsAabb(min, max)
		all = !none && c.shape.ContainsAabb(min, max)
	}

	switch {
	case none:
		return matchNone
	case all && !c.noFastPath:
		return matchAll
	default:
		return matchSome
	}
}

func castSeq[T comparable, S Shape](x *Index[T], shape S, inverse bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		c := &Cast[T, S]{index: x, shape: shape, inverse: inverse}
		c.Reset()
		for c.Next() {
			if !yield(c.Item()) {
				return
			}
		}
	}
}

func appendCast[T comparable, S Shape](dst []T, x *Index[T], shape S, inverse bool) []T {
	c := Cast[T, S]{index: x, shape: shape, inverse: inverse}
	c.Reset()
	return c.AppendTo(dst)
}

// ShapeCast returns the items inside shape. Every iteration of the returned
// sequence runs a new query.
func (x *Index[T]) ShapeCast(shape Shape) iter.Seq[T] {
	return castSeq(x, shape, false)
}

// InverseShapeCast returns the items outside of shape.
func (x *Index[T]) InverseShapeCast(shape Shape) iter.Seq[T] {
	return castSeq(x, shape, true)
}

// AppendShapeCast appends the items inside shape to dst.
func (x *Index[T]) AppendShapeCast(dst []T, shape Shape) []T {
	return appendCast(dst, x, shape, false)
}

// AppendInverseShapeCast appends the items outside of shape to dst.
func (x *Index[T]) AppendInverseShapeCast(dst []T, shape Shape) []T {
	return appendCast(dst, x, shape, true)
}

// SphereCast returns the items inside the sphere.
func (x *Index[T]) SphereCast(center Vector3, radius float64) iter.Seq[T] {
	return castSeq(x, Sphere{Center: center, Radius: radius}, false)
}

// InverseSphereCast returns the items outside of the sphere.
func (x *Index[T]) InverseSphereCast(center Vector3, radius float64) iter.Seq[T] {
	return castSeq(x, Sphere{Center: center, Radius: radius}, true)
}

func (x *Index[T]) AppendSphereCast(dst []T, center Vector3, radius float64) []T {
	return appendCast(dst, x, Sphere{Center: center, Radius: radius}, false)
}

func (x *Index[T]) AppendInverseSphereCast(dst []T, center Vector3, radius float64) []T {
	return appendCast(dst, x, Sphere{Center: center, Radius: radius}, true)
}

// AabbCast returns the items inside the box. Both corners are inclusive.
func (x *Index[T]) AabbCast(min, max Vector3) iter.Seq[T] {
	return castSeq(x, AABB{Min: min, Max: max}, false)
}

// InverseAabbCast returns the items outside of the box.
func (x *Index[T]) InverseAabbCast(min, max Vector3) iter.Seq[T] {
	return castSeq(x, AABB{Min: min, Max: max}, true)
}

func (x *Index[T]) AppendAabbCast(dst []T, min, max Vector3) []T {
	return appendCast(dst, x, AABB{Min: min, Max: max}, false)
}

func (x *Index[T]) AppendInverseAabbCast(dst []T, min, max Vector3) []T {
	return appendCast(dst, x, AABB{Min: min, Max: max}, true)
}
