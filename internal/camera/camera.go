// Package camera provides projections for HUD renderers.
//
// Screen space has its origin in the bottom-left corner, X to the right and
// Y up, measured in pixels. World space is left-handed with Y up unless a
// camera says otherwise.
package camera

import (
	"errors"

	"github.com/OCAP2/hud/pkg/core"
)

// ErrInvalidPose is returned for a pose whose forward vector is zero or not
// finite.
var ErrInvalidPose = errors.New("invalid camera pose")

// Pose places a camera in the world.
type Pose struct {
	Position core.Position3D `json:"position" mapstructure:"position"`
	Forward  core.Position3D `json:"forward" mapstructure:"forward"`
	Up       core.Position3D `json:"up" mapstructure:"up"`
}

// Validate normalises the direction vectors. A zero Up defaults to +Y, or
// +Z when Forward is vertical.
func (p Pose) Validate() (Pose, error) {
	if !p.Position.IsFinite() || !p.Forward.IsFinite() || !p.Up.IsFinite() {
		return p, ErrInvalidPose
	}
	fwd := p.Forward.Normalize()
	if fwd == (core.Position3D{}) {
		return p, ErrInvalidPose
	}
	p.Forward = fwd

	up := p.Up.Normalize()
	if up == (core.Position3D{}) || up.Cross(fwd).Length() < 1e-9 {
		up = core.Position3D{Y: 1}
		if up.Cross(fwd).Length() < 1e-9 {
			up = core.Position3D{Z: 1}
		}
	}
	p.Up = up
	return p, nil
}

// basis returns the right and up axes for a validated pose.
func (p Pose) basis() (right, up core.Position3D) {
	right = p.Up.Cross(p.Forward).Normalize()
	up = p.Forward.Cross(right)
	return right, up
}
