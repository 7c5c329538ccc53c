package hud

import (
	"sync/atomic"

	"github.com/OCAP2/hud/pkg/core"
)

// slot is one optional sub-visual of a view.
type slot struct {
	visual core.Visual
	active bool
	pos    core.Position2D
}

// View is the runtime state of one indicator inside one renderer.
//
// View fields are written by the renderer's tick. Read them from the
// goroutine that calls Tick, or between ticks.
type View struct {
	indicator *Indicator
	slots     [core.VisualKindCount]slot

	state    core.ViewState
	alpha    float64
	distance float64
	canvas   core.Position2D
	angle    float64
	stack    int

	// detached is set once the view has been unregistered; a pass still
	// holding it in its snapshot skips it.
	detached atomic.Bool
}

func newView(ind *Indicator) *View {
	return &View{
		indicator: ind,
		state:     core.StateHidden,
		stack:     -1,
	}
}

// Indicator returns the indicator this view represents.
func (v *View) Indicator() *Indicator { return v.indicator }

// State returns the current visibility class.
func (v *View) State() core.ViewState { return v.state }

// Alpha returns the current opacity.
func (v *View) Alpha() float64 { return v.alpha }

// Distance returns the last computed camera distance, the depth sort key.
func (v *View) Distance() float64 { return v.distance }

// StackIndex returns the draw order assigned by the last sort, or -1.
func (v *View) StackIndex() int { return v.stack }

// Angle returns the arrow rotation in degrees from the last off-screen layout.
func (v *View) Angle() float64 { return v.angle }

// HasVisual reports whether a sub-visual of kind was created.
func (v *View) HasVisual(kind core.VisualKind) bool {
	return kind < core.VisualKindCount && v.slots[kind].visual != nil
}

// VisualActive reports whether the sub-visual of kind is currently shown.
func (v *View) VisualActive(kind core.VisualKind) bool {
	return kind < core.VisualKindCount && v.slots[kind].active
}

// VisualPosition returns the last anchored position of kind.
func (v *View) VisualPosition(kind core.VisualKind) core.Position2D {
	if kind >= core.VisualKindCount {
		return core.Position2D{}
	}
	return v.slots[kind].pos
}

// Layout snapshots the view.
func (v *View) Layout() core.Layout {
	return core.Layout{
		Entity:     v.indicator.Entity(),
		State:      v.state,
		Alpha:      v.alpha,
		Distance:   v.distance,
		Canvas:     v.canvas,
		Edge:       v.slots[core.VisualOffScreen].pos,
		Arrow:      v.slots[core.VisualOffScreenArrow].pos,
		Angle:      v.angle,
		StackIndex: v.stack,
	}
}

// Hide deactivates every sub-visual and drops alpha to zero.
func (v *View) Hide() {
	for k := range v.slots {
		v.activate(core.VisualKind(k), false)
	}
	if v.alpha != 0 {
		v.setAlpha(0)
	}
	v.state = core.StateHidden
}

func (v *View) showOnScreen(canvas core.Position2D, alpha float64) {
	v.activate(core.VisualOffScreen, false)
	v.activate(core.VisualOffScreenArrow, false)
	v.place(core.VisualOnScreen, canvas)
	v.activate(core.VisualOnScreen, true)
	v.setAlpha(alpha)
	v.state = core.StateOnScreen
}

func (v *View) showOffScreen(edge, arrow core.Position2D, angle, alpha float64, caps core.Capabilities) {
	v.activate(core.VisualOnScreen, false)
	v.place(core.VisualOffScreen, edge)
	v.activate(core.VisualOffScreen, caps.OffScreen)
	v.place(core.VisualOffScreenArrow, arrow)
	if s := v.slots[core.VisualOffScreenArrow]; s.visual != nil {
		s.visual.SetRotation(angle)
	}
	v.activate(core.VisualOffScreenArrow, caps.OffScreenArrow)
	v.angle = angle
	v.setAlpha(alpha)
	v.state = core.StateOffScreen
}

// activate switches a sub-visual, calling the sink only on change. A slot
// without a visual never becomes active.
func (v *View) activate(kind core.VisualKind, on bool) {
	s := &v.slots[kind]
	if s.visual == nil {
		s.active = false
		return
	}
	if s.active != on {
		s.visual.SetActive(on)
		s.active = on
	}
}

func (v *View) place(kind core.VisualKind, p core.Position2D) {
	s := &v.slots[kind]
	s.pos = p
	if s.visual != nil {
		s.visual.SetAnchoredPosition(p)
	}
}

func (v *View) setAlpha(a float64) {
	v.alpha = a
	for _, s := range v.slots {
		if s.visual != nil {
			s.visual.SetAlpha(a)
		}
	}
}

func (v *View) setStackIndex(i int) {
	v.stack = i
	for _, s := range v.slots {
		if st, ok := s.visual.(core.Stackable); ok {
			st.SetStackIndex(i)
		}
	}
}

// takeVisuals returns the created sub-visuals and clears the slots.
func (v *View) takeVisuals() []core.Visual {
	var out []core.Visual
	for k := range v.slots {
		if v.slots[k].visual != nil {
			out = append(out, v.slots[k].visual)
		}
		v.slots[k] = slot{}
	}
	v.state = core.StateHidden
	return out
}
