// pkg/core/rect.go
package core

// Rect is an axis-aligned rectangle in canvas coordinates.
// Y grows upwards, so YMin is the bottom edge and YMax the top edge.
type Rect struct {
	XMin float64 `json:"xMin" mapstructure:"xMin"`
	YMin float64 `json:"yMin" mapstructure:"yMin"`
	XMax float64 `json:"xMax" mapstructure:"xMax"`
	YMax float64 `json:"yMax" mapstructure:"yMax"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Position2D {
	return Position2D{X: (r.XMin + r.XMax) / 2, Y: (r.YMin + r.YMax) / 2}
}

// Width returns XMax - XMin.
func (r Rect) Width() float64 { return r.XMax - r.XMin }

// Height returns YMax - YMin.
func (r Rect) Height() float64 { return r.YMax - r.YMin }

// Inset shrinks the rectangle by m on all four sides. The result may be
// inverted when m exceeds half the width or height; see Inverted.
func (r Rect) Inset(m float64) Rect {
	return Rect{XMin: r.XMin + m, YMin: r.YMin + m, XMax: r.XMax - m, YMax: r.YMax - m}
}

// Inverted reports whether either axis has min > max.
func (r Rect) Inverted() bool {
	return r.XMin > r.XMax || r.YMin > r.YMax
}
