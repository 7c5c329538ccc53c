package hud

import (
	"errors"
	"sync"

	"github.com/OCAP2/hud/pkg/core"
)

type fakeEntity struct {
	pos     core.Position3D
	active  bool
	missing bool
}

// fakeSource is an in-memory entity source. Unknown entities do not exist.
type fakeSource struct {
	mu       sync.Mutex
	entities map[core.EntityID]*fakeEntity
}

func newFakeSource() *fakeSource {
	return &fakeSource{entities: make(map[core.EntityID]*fakeEntity)}
}

func (s *fakeSource) put(id core.EntityID, pos core.Position3D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[id] = &fakeEntity{pos: pos, active: true}
}

func (s *fakeSource) setActive(id core.EntityID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[id].active = active
}

func (s *fakeSource) remove(id core.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
}

func (s *fakeSource) WorldPosition(id core.EntityID) (core.Position3D, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return core.Position3D{}, false
	}
	return e.pos, true
}

func (s *fakeSource) IsActive(id core.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	return ok && e.active
}

func (s *fakeSource) Exists(id core.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entities[id]
	return ok
}

// plainSource has no notion of existence.
type plainSource struct {
	pos core.Position3D
}

func (p plainSource) WorldPosition(core.EntityID) (core.Position3D, bool) { return p.pos, true }
func (p plainSource) IsActive(core.EntityID) bool                         { return true }

// flatCamera sits at the origin looking along +Z and maps world X/Y straight
// to screen coordinates scaled by scale. Depth is world Z.
type flatCamera struct {
	scale float64
}

func (c flatCamera) WorldToScreen(p core.Position3D) (core.Position2D, float64) {
	s := c.scale
	if s == 0 {
		s = 1
	}
	return core.Position2D{X: p.X * s, Y: p.Y * s}, p.Z
}

func (flatCamera) Position() core.Position3D { return core.Position3D{} }
func (flatCamera) Forward() core.Position3D  { return core.Position3D{Z: 1} }

// fixedCamera projects every point to the same screen position.
type fixedCamera struct {
	screen core.Position2D
	depth  float64
}

func (c fixedCamera) WorldToScreen(core.Position3D) (core.Position2D, float64) {
	return c.screen, c.depth
}
func (fixedCamera) Position() core.Position3D { return core.Position3D{} }
func (fixedCamera) Forward() core.Position3D  { return core.Position3D{Z: 1} }

// panicCamera fails for one entity position.
type panicCamera struct {
	flatCamera
	bad core.Position3D
}

func (c panicCamera) WorldToScreen(p core.Position3D) (core.Position2D, float64) {
	if p == c.bad {
		panic("projection failed")
	}
	return c.flatCamera.WorldToScreen(p)
}

// brokenCamera panics when its pose is read.
type brokenCamera struct {
	flatCamera
}

func (brokenCamera) Position() core.Position3D { panic("camera transform gone") }

type fakeVisual struct {
	kind     core.VisualKind
	entity   core.EntityID
	active   bool
	pos      core.Position2D
	rotation float64
	alpha    float64
	stack    int
	toggles  int
	onActive func()
}

func (v *fakeVisual) SetActive(a bool) {
	v.active = a
	v.toggles++
	if v.onActive != nil {
		v.onActive()
	}
}
func (v *fakeVisual) SetAnchoredPosition(p core.Position2D) { v.pos = p }
func (v *fakeVisual) SetRotation(d float64)                 { v.rotation = d }
func (v *fakeVisual) SetAlpha(a float64)                    { v.alpha = a }
func (v *fakeVisual) SetStackIndex(i int)                   { v.stack = i }

type fakeFactory struct {
	mu       sync.Mutex
	missing  map[core.VisualKind]bool
	created  []*fakeVisual
	released []*fakeVisual
}

func newFakeFactory(missing ...core.VisualKind) *fakeFactory {
	f := &fakeFactory{missing: make(map[core.VisualKind]bool)}
	for _, k := range missing {
		f.missing[k] = true
	}
	return f
}

var errNoResource = errors.New("no resource")

func (f *fakeFactory) NewVisual(kind core.VisualKind, entity core.EntityID) (core.Visual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[kind] {
		return nil, errNoResource
	}
	v := &fakeVisual{kind: kind, entity: entity, stack: -1}
	f.created = append(f.created, v)
	return v, nil
}

func (f *fakeFactory) ReleaseVisual(v core.Visual) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, v.(*fakeVisual))
}

func (f *fakeFactory) visual(entity core.EntityID, kind core.VisualKind) *fakeVisual {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.created {
		if v.entity == entity && v.kind == kind {
			return v
		}
	}
	return nil
}

func (f *fakeFactory) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released)
}

// testSettings is a 200x200 viewport centred on the origin.
func testSettings() Settings {
	return Settings{
		Viewport:      core.Rect{XMin: -100, YMin: -100, XMax: 100, YMax: 100},
		Margin:        10,
		ArrowMargin:   20,
		SortEnabled:   true,
		SortInterval:  1,
		SweepInterval: 0,
	}
}
