package camera

import (
	"sync"

	"github.com/OCAP2/hud/pkg/core"
)

// Rig is a perspective camera whose pose can be moved from any goroutine
// while renderers project through it.
type Rig struct {
	mu     sync.RWMutex
	cam    *Perspective
	fovY   float64
	width  float64
	height float64
}

// NewRig creates a rig at pose.
func NewRig(pose Pose, fovY, width, height float64) (*Rig, error) {
	cam, err := NewPerspective(pose, fovY, width, height)
	if err != nil {
		return nil, err
	}
	return &Rig{cam: cam, fovY: fovY, width: width, height: height}, nil
}

// SetPose moves the camera. The previous pose is kept on error.
func (r *Rig) SetPose(pose Pose) error {
	cam, err := NewPerspective(pose, r.fovY, r.width, r.height)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cam = cam
	return nil
}

// Move keeps the current up vector and replaces position and forward.
func (r *Rig) Move(position, forward core.Position3D) error {
	return r.SetPose(Pose{Position: position, Forward: forward, Up: r.Pose().Up})
}

func (r *Rig) Pose() Pose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cam.Pose()
}

func (r *Rig) WorldToScreen(p core.Position3D) (core.Position2D, float64) {
	r.mu.RLock()
	cam := r.cam
	r.mu.RUnlock()
	return cam.WorldToScreen(p)
}

func (r *Rig) Position() core.Position3D {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cam.Position()
}

func (r *Rig) Forward() core.Position3D {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cam.Forward()
}

// Canvas returns the mapping from this rig's screen onto a canvas of the
// same size centred on the origin.
func (r *Rig) Canvas() ScreenCanvas {
	return NewScreenCanvas(r.width, r.height)
}
