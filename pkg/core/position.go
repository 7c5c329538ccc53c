// pkg/core/position.go
package core

import "math"

// Position3D is a world-space coordinate or direction.
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // elevation
}

// Add returns p + q.
func (p Position3D) Add(q Position3D) Position3D {
	return Position3D{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q.
func (p Position3D) Sub(q Position3D) Position3D {
	return Position3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns p scaled by s.
func (p Position3D) Scale(s float64) Position3D {
	return Position3D{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

// Dot returns the dot product of p and q.
func (p Position3D) Dot(q Position3D) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the cross product p × q.
func (p Position3D) Cross(q Position3D) Position3D {
	return Position3D{
		X: p.Y*q.Z - p.Z*q.Y,
		Y: p.Z*q.X - p.X*q.Z,
		Z: p.X*q.Y - p.Y*q.X,
	}
}

// Length returns the Euclidean length of p.
func (p Position3D) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Normalize returns a unit vector in the direction of p, or the zero vector.
func (p Position3D) Normalize() Position3D {
	l := p.Length()
	if l == 0 {
		return Position3D{}
	}
	return p.Scale(1 / l)
}

// IsFinite reports whether no component is NaN or infinite.
func (p Position3D) IsFinite() bool {
	return finite(p.X) && finite(p.Y) && finite(p.Z)
}

// Position2D is a screen or canvas coordinate.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Position2D) Add(q Position2D) Position2D {
	return Position2D{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Position2D) Sub(q Position2D) Position2D {
	return Position2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p scaled by s.
func (p Position2D) Scale(s float64) Position2D {
	return Position2D{X: p.X * s, Y: p.Y * s}
}

// Length returns the Euclidean length of p.
func (p Position2D) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Normalize returns a unit vector in the direction of p, or the zero vector.
func (p Position2D) Normalize() Position2D {
	l := p.Length()
	if l == 0 || !finite(l) {
		return Position2D{}
	}
	return Position2D{X: p.X / l, Y: p.Y / l}
}

// IsFinite reports whether no component is NaN or infinite.
func (p Position2D) IsFinite() bool {
	return finite(p.X) && finite(p.Y)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
