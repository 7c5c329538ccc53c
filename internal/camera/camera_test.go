package camera

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/hud/pkg/core"
)

var forwardZ = Pose{Forward: core.Position3D{Z: 1}, Up: core.Position3D{Y: 1}}

func TestPose_Validate(t *testing.T) {
	p, err := Pose{Forward: core.Position3D{Z: 10}}.Validate()
	require.NoError(t, err)
	assert.Equal(t, core.Position3D{Z: 1}, p.Forward)
	assert.Equal(t, core.Position3D{Y: 1}, p.Up)

	p, err = Pose{Forward: core.Position3D{Y: -3}}.Validate()
	require.NoError(t, err)
	assert.Equal(t, core.Position3D{Z: 1}, p.Up)

	_, err = Pose{}.Validate()
	assert.ErrorIs(t, err, ErrInvalidPose)

	_, err = Pose{Forward: core.Position3D{X: math.NaN()}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidPose)
}

func TestPerspective_WorldToScreen(t *testing.T) {
	cam, err := NewPerspective(forwardZ, 90, 200, 100)
	require.NoError(t, err)

	tests := []struct {
		name   string
		p      core.Position3D
		screen core.Position2D
		depth  float64
	}{
		{"straight ahead", core.Position3D{Z: 10}, core.Position2D{X: 100, Y: 50}, 10},
		{"right", core.Position3D{X: 10, Z: 50}, core.Position2D{X: 110, Y: 50}, 50},
		{"up", core.Position3D{Y: 25, Z: 50}, core.Position2D{X: 100, Y: 75}, 50},
		{"left and down", core.Position3D{X: -20, Y: -20, Z: 100}, core.Position2D{X: 90, Y: 40}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen, depth := cam.WorldToScreen(tt.p)
			assert.InDelta(t, tt.screen.X, screen.X, 1e-9)
			assert.InDelta(t, tt.screen.Y, screen.Y, 1e-9)
			assert.InDelta(t, tt.depth, depth, 1e-9)
		})
	}
}

func TestPerspective_BehindAndOnPlane(t *testing.T) {
	cam, err := NewPerspective(forwardZ, 60, 1920, 1080)
	require.NoError(t, err)

	_, depth := cam.WorldToScreen(core.Position3D{X: 1, Z: -5})
	assert.Less(t, depth, 0.0)

	screen, depth := cam.WorldToScreen(core.Position3D{X: 1})
	assert.Equal(t, 0.0, depth)
	assert.True(t, screen.IsFinite())
}

func TestPerspective_Rotated(t *testing.T) {
	// Looking along +X with Y up puts +Z on the left.
	cam, err := NewPerspective(Pose{Forward: core.Position3D{X: 1}}, 90, 200, 200)
	require.NoError(t, err)

	screen, depth := cam.WorldToScreen(core.Position3D{X: 10, Z: 5})
	assert.InDelta(t, 10, depth, 1e-9)
	assert.Less(t, screen.X, 100.0)
}

func TestNewPerspective_Invalid(t *testing.T) {
	_, err := NewPerspective(forwardZ, 0, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidPose)
	_, err = NewPerspective(forwardZ, 60, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidPose)
	_, err = NewPerspective(Pose{}, 60, 100, 100)
	assert.ErrorIs(t, err, ErrInvalidPose)
}

func TestTopDown(t *testing.T) {
	cam := TopDown{
		Center:         core.Position3D{X: 100, Y: 200, Z: 500},
		MetersPerPixel: 2,
		Width:          100,
		Height:         100,
	}

	screen, depth := cam.WorldToScreen(core.Position3D{X: 120, Y: 180})
	assert.Equal(t, core.Position2D{X: 60, Y: 40}, screen)
	assert.Equal(t, 500.0, depth)
	assert.Equal(t, core.Position3D{Z: -1}, cam.Forward())
}

func TestTopDown_Follow(t *testing.T) {
	rig, err := NewRig(forwardZ, 90, 200, 100)
	require.NoError(t, err)
	cam := TopDown{Center: core.Position3D{Z: 1000}, Follow: rig, Width: 100, Height: 100}

	require.NoError(t, rig.Move(core.Position3D{X: 50, Y: 50, Z: 2}, core.Position3D{Z: 1}))
	screen, depth := cam.WorldToScreen(core.Position3D{X: 60, Y: 40, Z: 10})
	assert.Equal(t, core.Position2D{X: 60, Y: 40}, screen)
	assert.Equal(t, 990.0, depth)
	assert.Equal(t, core.Position3D{X: 50, Y: 50, Z: 1000}, cam.Position())
}

func TestScreenCanvas(t *testing.T) {
	sc := NewScreenCanvas(200, 100)

	assert.Equal(t, core.Position2D{}, sc.ScreenToCanvas(core.Position2D{X: 100, Y: 50}))
	assert.Equal(t, core.Position2D{X: 10}, sc.ScreenToCanvas(core.Position2D{X: 110, Y: 50}))
	assert.Equal(t, core.Position2D{X: -100, Y: -50}, sc.ScreenToCanvas(core.Position2D{}))

	// pixels inside the screen land exactly, so inset edges classify as on-screen
	hd := NewScreenCanvas(1920, 1080)
	for x := range 1921 {
		got := hd.ScreenToCanvas(core.Position2D{X: float64(x), Y: 1070})
		require.Equal(t, core.Position2D{X: float64(x) - 960, Y: 530}, got, x)
	}

	scaled := ScreenCanvas{Width: 200, Height: 100, Canvas: core.Rect{XMin: 0, YMin: 0, XMax: 400, YMax: 200}}
	assert.Equal(t, core.Position2D{X: 220, Y: 100}, scaled.ScreenToCanvas(core.Position2D{X: 110, Y: 50}))

	var zero ScreenCanvas
	assert.Equal(t, core.Position2D{}, zero.ScreenToCanvas(core.Position2D{X: 5}))
}

func TestRig_Move(t *testing.T) {
	rig, err := NewRig(forwardZ, 90, 200, 100)
	require.NoError(t, err)

	require.NoError(t, rig.Move(core.Position3D{Z: -10}, core.Position3D{Z: 2}))
	assert.Equal(t, core.Position3D{Z: -10}, rig.Position())
	assert.Equal(t, core.Position3D{Z: 1}, rig.Forward())

	_, depth := rig.WorldToScreen(core.Position3D{})
	assert.InDelta(t, 10, depth, 1e-9)

	err = rig.Move(core.Position3D{}, core.Position3D{})
	assert.ErrorIs(t, err, ErrInvalidPose)
	assert.Equal(t, core.Position3D{Z: -10}, rig.Position())

	assert.Equal(t, 200.0, rig.Canvas().Width)
}

func TestRig_Concurrent(t *testing.T) {
	rig, err := NewRig(forwardZ, 60, 1920, 1080)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = rig.Move(core.Position3D{X: float64(i)}, core.Position3D{Z: 1})
		}()
		go func() {
			defer wg.Done()
			rig.WorldToScreen(core.Position3D{Z: 100})
			rig.Forward()
		}()
	}
	wg.Wait()

	assert.Equal(t, core.Position3D{Z: 1}, rig.Forward())
}
