package spatial

import "math"

// Shape is a volume that range queries test items against.
//
// IntersectsAabb may report an intersection that does not exist and
// ContainsAabb may miss a containment that does, but neither is allowed to
// contradict ContainsPoint: IntersectsAabb must be true whenever a point of the
// box is inside, and ContainsAabb must only be true when every point of the box
// is inside. Boxes are given as closed [min, max] ranges.
type Shape interface {
	ContainsPoint(p Vector3) bool
	IntersectsAabb(min, max Vector3) bool
	ContainsAabb(min, max Vector3) bool
}

// AABB is an axis-aligned bounding box. Both corners are inclusive.
type AABB struct {
	Min Vector3 `json:"min"`
	Max Vector3 `json:"max"`
}

func NewAABB(min, max Vector3) AABB {
	return AABB{Min: min, Max: max}
}

func (b AABB) Size() Vector3 {
	return Sub(b.Max, b.Min)
}

func (b AABB) Center() Vector3 {
	return Mul(Add(b.Min, b.Max), 0.5)
}

func (b AABB) ContainsPoint(p Vector3) bool {
	return p.GreaterOrEqualThan(b.Min) && p.LesserOrEqualThan(b.Max)
}

func (b AABB) IntersectsAabb(min, max Vector3) bool {
	return min.LesserOrEqualThan(b.Max) && max.GreaterOrEqualThan(b.Min)
}

func (b AABB) ContainsAabb(min, max Vector3) bool {
	return min.GreaterOrEqualThan(b.Min) && max.LesserOrEqualThan(b.Max)
}

// Sphere is a ball given by its center and radius. A negative radius gives an
// empty sphere.
type Sphere struct {
	Center Vector3 `json:"center"`
	Radius float64 `json:"radius"`
}

func NewSphere(center Vector3, radius float64) Sphere {
	return Sphere{Center: center, Radius: radius}
}

func (s Sphere) ContainsPoint(p Vector3) bool {
	if s.Radius < 0 {
		return false
	}
	return DistanceSquared(p, s.Center) <= s.Radius*s.Radius
}

func (s Sphere) IntersectsAabb(min, max Vector3) bool {
	if s.Radius < 0 {
		return false
	}

	closest := Vector3{
		X: clamp(s.Center.X, min.X, max.X),
		Y: clamp(s.Center.Y, min.Y, max.Y),
		Z: clamp(s.Center.Z, min.Z, max.Z),
	}
	return DistanceSquared(closest, s.Center) <= s.Radius*s.Radius
}

func (s Sphere) ContainsAabb(min, max Vector3) bool {
	if s.Radius < 0 {
		return false
	}

	// The distances are computed exactly like DistanceSquared does so that
	// rounding keeps the farthest corner at least as far as any inner point.
	lo := Sub(min, s.Center)
	hi := Sub(max, s.Center)
	farthest := Vector3{
		X: math.Max(math.Abs(lo.X), math.Abs(hi.X)),
		Y: math.Max(math.Abs(lo.Y), math.Abs(hi.Y)),
		Z: math.Max(math.Abs(lo.Z), math.Abs(hi.Z)),
	}
	return farthest.Dot(farthest) <= s.Radius*s.Radius
}

// everywhere matches every point. It backs the unfiltered enumeration.
type everywhere struct{}

func (everywhere) ContainsPoint(Vector3) bool           { return true }
func (everywhere) IntersectsAabb(Vector3, Vector3) bool { return true }
func (everywhere) ContainsAabb(Vector3, Vector3) bool   { return true }

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
