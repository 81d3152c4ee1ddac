package spatial

import (
	"math"
)

// Vector3 is a position or a direction in 3D space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func NewVector3(x, y, z float64) Vector3 {
	return Vector3{x, y, z}
}

func Add(a Vector3, b Vector3) Vector3 {
	return Vector3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func Sub(a Vector3, b Vector3) Vector3 {
	return Vector3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func Mul(a Vector3, s float64) Vector3 {
	return Vector3{a.X * s, a.Y * s, a.Z * s}
}

// Min returns the component-wise minimum of a and b.
func Min(a Vector3, b Vector3) Vector3 {
	return Vector3{math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z)}
}

// Max returns the component-wise maximum of a and b.
func Max(a Vector3, b Vector3) Vector3 {
	return Vector3{math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z)}
}

func (v Vector3) Dot(b Vector3) float64 {
	return v.X*b.X + v.Y*b.Y + v.Z*b.Z
}

func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

func DistanceSquared(a Vector3, b Vector3) float64 {
	d := Sub(a, b)
	return d.Dot(d)
}

func (v Vector3) LesserOrEqualThan(b Vector3) bool {
	return v.X <= b.X && v.Y <= b.Y && v.Z <= b.Z
}

func (v Vector3) GreaterOrEqualThan(b Vector3) bool {
	return v.X >= b.X && v.Y >= b.Y && v.Z >= b.Z
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
