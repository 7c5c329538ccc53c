package hud

import (
	"sync"
	"sync/atomic"

	"github.com/OCAP2/hud/pkg/core"
)

// Indicator is a handle to one tracked world entity plus its visual
// configuration. Its flags may be changed from any goroutine; renderers read
// them every tick.
type Indicator struct {
	entity core.EntityID
	source EntitySource

	visible   atomic.Bool
	caps      atomic.Uint32
	destroyed bool

	mu        sync.Mutex
	renderers map[*Renderer]struct{}
}

// NewIndicator creates a visible indicator for entity. source is not owned.
func NewIndicator(entity core.EntityID, source EntitySource, caps core.Capabilities) *Indicator {
	ind := &Indicator{
		entity:    entity,
		source:    source,
		renderers: make(map[*Renderer]struct{}),
	}
	ind.visible.Store(true)
	ind.caps.Store(caps.Bits())
	return ind
}

// Entity returns the tracked entity handle.
func (i *Indicator) Entity() core.EntityID { return i.entity }

// Visible reports the externally set visibility flag.
func (i *Indicator) Visible() bool { return i.visible.Load() }

// SetVisible hides or shows the indicator in every renderer.
func (i *Indicator) SetVisible(v bool) { i.visible.Store(v) }

// Capabilities returns the runtime capability flags.
func (i *Indicator) Capabilities() core.Capabilities {
	return core.CapabilitiesFromBits(i.caps.Load())
}

// SetCapabilities replaces the runtime capability flags. Sub-visuals are
// only created at registration, so enabling a kind the view was registered
// without has no visible effect.
func (i *Indicator) SetCapabilities(c core.Capabilities) { i.caps.Store(c.Bits()) }

// Active reports whether the tracked entity is alive. It is not cached.
func (i *Indicator) Active() bool {
	if i.source == nil || i.Destroyed() {
		return false
	}
	return i.source.IsActive(i.entity)
}

// WorldPosition returns the entity position; ok is false when the source
// has none or it is not finite.
func (i *Indicator) WorldPosition() (core.Position3D, bool) {
	if i.source == nil {
		return core.Position3D{}, false
	}
	pos, ok := i.source.WorldPosition(i.entity)
	if !ok || !pos.IsFinite() {
		return core.Position3D{}, false
	}
	return pos, true
}

// Destroyed reports whether Destroy has been called.
func (i *Indicator) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// Destroy unregisters the indicator from every renderer it joined. Later
// registrations are refused.
func (i *Indicator) Destroy() {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.destroyed = true
	joined := make([]*Renderer, 0, len(i.renderers))
	for r := range i.renderers {
		joined = append(joined, r)
	}
	i.mu.Unlock()

	for _, r := range joined {
		r.UnregisterIndicator(i)
	}
}

// Renderers returns how many renderers currently hold a view of i.
func (i *Indicator) Renderers() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.renderers)
}

// exists reports whether the entity is still known to its source.
func (i *Indicator) exists() bool {
	if i.Destroyed() {
		return false
	}
	if es, ok := i.source.(existenceSource); ok {
		return es.Exists(i.entity)
	}
	return true
}

func (i *Indicator) join(r *Renderer) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return false
	}
	i.renderers[r] = struct{}{}
	return true
}

func (i *Indicator) leave(r *Renderer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.renderers, r)
}
