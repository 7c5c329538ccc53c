package camera

import "github.com/OCAP2/hud/pkg/core"

// ScreenCanvas maps a Width x Height screen linearly onto Canvas.
type ScreenCanvas struct {
	Width  float64
	Height float64
	Canvas core.Rect
}

// NewScreenCanvas maps a screen onto a canvas of the same size centred on
// the origin.
func NewScreenCanvas(width, height float64) ScreenCanvas {
	return ScreenCanvas{
		Width:  width,
		Height: height,
		Canvas: core.Rect{XMin: -width / 2, YMin: -height / 2, XMax: width / 2, YMax: height / 2},
	}
}

// ScreenToCanvas converts a screen position to canvas space. A zero sized
// screen maps everything to the canvas centre.
func (s ScreenCanvas) ScreenToCanvas(p core.Position2D) core.Position2D {
	if s.Width <= 0 || s.Height <= 0 {
		return s.Canvas.Center()
	}
	return core.Position2D{
		X: s.Canvas.XMin + p.X*s.Canvas.Width()/s.Width,
		Y: s.Canvas.YMin + p.Y*s.Canvas.Height()/s.Height,
	}
}
