package camera

import "github.com/OCAP2/hud/pkg/core"

// Positioner reports a world position, e.g. a Rig.
type Positioner interface {
	Position() core.Position3D
}

// TopDown is an orthographic map camera looking down the world Z axis, for
// positions in projected map coordinates (X east, Y north, Z altitude).
// With Follow set the camera tracks its X and Y; Center.Z stays the altitude.
type TopDown struct {
	Center         core.Position3D
	Follow         Positioner
	MetersPerPixel float64
	Width          float64
	Height         float64
}

func (c TopDown) center() core.Position3D {
	if c.Follow == nil {
		return c.Center
	}
	p := c.Follow.Position()
	return core.Position3D{X: p.X, Y: p.Y, Z: c.Center.Z}
}

// WorldToScreen maps p onto the screen. Depth is the height of the camera
// above p.
func (c TopDown) WorldToScreen(p core.Position3D) (core.Position2D, float64) {
	mpp := c.MetersPerPixel
	if mpp <= 0 {
		mpp = 1
	}
	center := c.center()
	return core.Position2D{
		X: c.Width/2 + (p.X-center.X)/mpp,
		Y: c.Height/2 + (p.Y-center.Y)/mpp,
	}, center.Z - p.Z
}

func (c TopDown) Position() core.Position3D { return c.center() }
func (c TopDown) Forward() core.Position3D  { return core.Position3D{Z: -1} }
