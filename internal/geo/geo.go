// Package geo holds the pure geometry used by the indicator layout pass:
// distance fading, ray/rectangle edge clamping, bearings and viewport
// containment, plus conversions for hosts that feed geographic positions.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/hud/pkg/core"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses a "x,y" or "x,y,z" string into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 || len(coordsSplit) > 3 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var vals [3]float64
	for i, s := range coordsSplit {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	return core.Position3D{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// maxMercatorLatitude bounds the square Web Mercator world.
const maxMercatorLatitude = 85.0511287798

// PositionFromLonLat projects a WGS84 longitude/latitude (EPSG:4326) into
// Web Mercator metres (EPSG:3857) so geographic hosts share the engine's
// metric world space. Altitude passes through as Z.
func PositionFromLonLat(longitude, latitude, altitude float64) (core.Position3D, error) {
	if longitude < -180 || longitude > 180 || latitude < -maxMercatorLatitude || latitude > maxMercatorLatitude {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	if math.IsNaN(x) || math.IsNaN(y) {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	return core.Position3D{X: x, Y: y, Z: altitude}, nil
}
