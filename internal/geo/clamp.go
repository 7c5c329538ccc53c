package geo

import (
	"math"

	"github.com/OCAP2/hud/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ClampToRectEdge casts a ray from the centre of rect through point and
// returns where it first crosses the rectangle inset by margin. Only the
// edges the ray heads toward are tested. The centre is returned when the
// direction is undefined or the inset rectangle is inverted.
func ClampToRectEdge(point core.Position2D, rect core.Rect, margin float64) core.Position2D {
	center := rect.Center()
	dir := point.Sub(center).Normalize()
	if dir == (core.Position2D{}) {
		return center
	}

	inner := rect.Inset(margin)
	if inner.Inverted() {
		return center
	}

	t := math.Inf(1)
	consider := func(candidate float64) {
		if candidate > 0 && candidate < t {
			t = candidate
		}
	}
	if dir.X > 0 {
		consider((inner.XMax - center.X) / dir.X)
	} else if dir.X < 0 {
		consider((inner.XMin - center.X) / dir.X)
	}
	if dir.Y > 0 {
		consider((inner.YMax - center.Y) / dir.Y)
	} else if dir.Y < 0 {
		consider((inner.YMin - center.Y) / dir.Y)
	}

	if math.IsInf(t, 1) {
		return center
	}
	return center.Add(dir.Scale(t))
}

// Bearing returns the angle in degrees of the vector from -> to, measured
// counter-clockwise from +X.
func Bearing(from, to core.Position2D) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
}

// InsetContains reports whether p lies inside rect shrunk by inset on every
// side, boundary included. An inverted inset contains nothing.
func InsetContains(rect core.Rect, inset float64, p core.Position2D) bool {
	inner := rect.Inset(inset)
	if inner.Inverted() || !p.IsFinite() {
		return false
	}
	env, err := geom.NewEnvelope([]geom.XY{
		{X: inner.XMin, Y: inner.YMin},
		{X: inner.XMax, Y: inner.YMax},
	})
	if err != nil {
		return false
	}
	return env.Contains(geom.XY{X: p.X, Y: p.Y})
}
