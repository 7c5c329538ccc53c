package camera

import (
	"math"

	"github.com/OCAP2/hud/pkg/core"
)

// minDepth keeps projection finite for points on the camera plane.
const minDepth = 1e-6

// Perspective is a pinhole camera with a vertical field of view.
type Perspective struct {
	pose   Pose
	right  core.Position3D
	up     core.Position3D
	width  float64
	height float64
	focal  float64
}

// NewPerspective creates a camera rendering width x height pixels with the
// given vertical field of view in degrees.
func NewPerspective(pose Pose, fovY, width, height float64) (*Perspective, error) {
	pose, err := pose.Validate()
	if err != nil {
		return nil, err
	}
	if fovY <= 0 || fovY >= 180 || width <= 0 || height <= 0 {
		return nil, ErrInvalidPose
	}
	right, up := pose.basis()
	return &Perspective{
		pose:   pose,
		right:  right,
		up:     up,
		width:  width,
		height: height,
		focal:  (height / 2) / math.Tan(fovY*math.Pi/360),
	}, nil
}

// WorldToScreen projects p. Depth is the distance along the view direction
// and is negative behind the camera.
func (c *Perspective) WorldToScreen(p core.Position3D) (core.Position2D, float64) {
	d := p.Sub(c.pose.Position)
	depth := d.Dot(c.pose.Forward)
	z := depth
	if math.Abs(z) < minDepth {
		z = math.Copysign(minDepth, z)
	}
	return core.Position2D{
		X: c.width/2 + d.Dot(c.right)*c.focal/z,
		Y: c.height/2 + d.Dot(c.up)*c.focal/z,
	}, depth
}

// Position returns the camera position in world space.
func (c *Perspective) Position() core.Position3D { return c.pose.Position }

// Forward returns the unit view direction.
func (c *Perspective) Forward() core.Position3D { return c.pose.Forward }

// Pose returns the validated pose.
func (c *Perspective) Pose() Pose { return c.pose }

// Size returns the screen size in pixels.
func (c *Perspective) Size() (width, height float64) { return c.width, c.height }
