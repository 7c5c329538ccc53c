package hud

import "github.com/OCAP2/hud/pkg/core"

// EntitySource resolves tracked entities. Renderers poll it once per view
// per tick.
type EntitySource interface {
	WorldPosition(id core.EntityID) (core.Position3D, bool)
	IsActive(id core.EntityID) bool
}

// existenceSource is implemented by sources that can tell a despawned entity
// from a merely inactive one. Sweeps reclaim views of entities that no
// longer exist.
type existenceSource interface {
	Exists(id core.EntityID) bool
}

// Camera projects world positions for a renderer.
type Camera interface {
	// WorldToScreen returns the screen position of p and its depth along the
	// view direction. Negative depth means p is behind the camera.
	WorldToScreen(p core.Position3D) (screen core.Position2D, depth float64)
	Position() core.Position3D
	Forward() core.Position3D
}

// CanvasSpace maps screen coordinates into the renderer's rectangle space.
type CanvasSpace interface {
	ScreenToCanvas(p core.Position2D) core.Position2D
}

// IdentityCanvas treats screen coordinates as canvas coordinates.
type IdentityCanvas struct{}

// ScreenToCanvas returns p unchanged.
func (IdentityCanvas) ScreenToCanvas(p core.Position2D) core.Position2D { return p }
