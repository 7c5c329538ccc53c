package parser

import "github.com/OCAP2/hud/pkg/core"

// EntitySpawn adds or replaces a tracked entity.
type EntitySpawn struct {
	ID       core.EntityID
	Position core.Position3D
	Active   bool
}

// EntityMove updates an entity position.
type EntityMove struct {
	ID       core.EntityID
	Position core.Position3D
}

// EntityActive updates an entity liveness flag.
type EntityActive struct {
	ID     core.EntityID
	Active bool
}

// IndicatorAdd registers an entity's indicator with a renderer.
type IndicatorAdd struct {
	ID       core.EntityID
	Renderer string
	Caps     core.Capabilities
}

// IndicatorRemove unregisters an indicator from one renderer, or destroys
// it when Renderer is empty.
type IndicatorRemove struct {
	ID       core.EntityID
	Renderer string
}

// IndicatorVisible toggles an indicator's visibility.
type IndicatorVisible struct {
	ID      core.EntityID
	Visible bool
}

// IndicatorCaps replaces an indicator's runtime capabilities.
type IndicatorCaps struct {
	ID   core.EntityID
	Caps core.Capabilities
}

// CameraSet moves the camera rig.
type CameraSet struct {
	Position core.Position3D
	Forward  core.Position3D
}

// RendererHidden hides or shows a whole renderer.
type RendererHidden struct {
	Name   string
	Hidden bool
}

// RendererSort configures depth ordering.
type RendererSort struct {
	Name     string
	Enabled  bool
	Interval int
}

// RendererFade sets the fade distances.
type RendererFade struct {
	Name string
	Near float64
	Far  float64
}

// RendererMargins sets the marker and arrow insets.
type RendererMargins struct {
	Name        string
	Margin      float64
	ArrowMargin float64
}
