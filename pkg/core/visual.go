// pkg/core/visual.go
package core

// Visual is the presentation sink for one sub-visual. The engine only calls
// these setters; drawing is the host's concern.
type Visual interface {
	SetActive(active bool)
	SetAnchoredPosition(p Position2D)
	SetRotation(degrees float64)
	SetAlpha(alpha float64)
}

// Stackable is implemented by visuals that accept a draw-order index.
// Index 0 is the backmost.
type Stackable interface {
	SetStackIndex(index int)
}

// VisualFactory creates and releases sub-visual resources.
// NewVisual may return a nil Visual when no resource exists for kind.
type VisualFactory interface {
	NewVisual(kind VisualKind, entity EntityID) (Visual, error)
	ReleaseVisual(v Visual)
}
