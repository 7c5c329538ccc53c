package hud

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/hud/internal/geo"
	"github.com/OCAP2/hud/internal/queue"
	"github.com/OCAP2/hud/pkg/core"
)

// TickStats summarises one layout pass.
type TickStats struct {
	Tick      uint64        `json:"tick"`
	Views     int           `json:"views"`
	OnScreen  int           `json:"onScreen"`
	OffScreen int           `json:"offScreen"`
	Hidden    int           `json:"hidden"`
	Sorted    bool          `json:"sorted"`
	Swept     int           `json:"swept"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMeter sets the meter used for renderer metrics. The default is the
// global OTel meter, a no-op unless a provider is installed.
func WithMeter(m metric.Meter) Option {
	return func(r *Renderer) {
		r.meter = m
	}
}

// WithCamera sets the initial camera.
func WithCamera(c Camera) Option {
	return func(r *Renderer) {
		r.camera = c
	}
}

// WithCanvas sets the screen to canvas mapping. The default is IdentityCanvas.
func WithCanvas(c CanvasSpace) Option {
	return func(r *Renderer) {
		if c != nil {
			r.canvas = c
		}
	}
}

type viewOpKind uint8

const (
	opAdd viewOpKind = iota
	opRemove
)

// viewOp is a list mutation requested while a pass was running.
type viewOp struct {
	kind viewOpKind
	view *View
}

// Renderer lays out the views of one viewport.
type Renderer struct {
	name    string
	factory core.VisualFactory
	logger  *slog.Logger
	meter   metric.Meter
	metrics *rendererMetrics

	// tickMu serialises passes and Close.
	tickMu sync.Mutex

	mu           sync.Mutex
	settings     Settings
	camera       Camera
	canvas       CanvasSpace
	hidden       bool
	views        []*View
	index        map[*Indicator]*View
	pending      *queue.Queue[viewOp]
	inPass       bool
	sortCounter  int
	ticks        uint64
	stats        TickStats
	cameraWarned bool
	closed       bool
}

// New creates a renderer. factory may be nil, in which case views carry no
// sub-visuals and only their computed layout is available.
func New(name string, factory core.VisualFactory, settings Settings, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		name:     name,
		factory:  factory,
		logger:   slog.New(slog.DiscardHandler),
		settings: settings.sanitized(),
		canvas:   IdentityCanvas{},
		index:    make(map[*Indicator]*View),
		pending:  queue.New[viewOp](),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.meter == nil {
		r.meter = meter()
	}
	r.logger = r.logger.With("renderer", name)

	m, err := newRendererMetrics(r.meter, r)
	if err != nil {
		return nil, fmt.Errorf("renderer %s: %w", name, err)
	}
	r.metrics = m

	return r, nil
}

// Name returns the renderer name.
func (r *Renderer) Name() string { return r.name }

// RegisterIndicator creates the view for ind, instantiating a sub-visual for
// every kind enabled in caps. It is idempotent and returns the existing view
// for a known indicator. It returns nil for a destroyed indicator or a
// closed renderer. Calls made while a pass runs take effect after it.
func (r *Renderer) RegisterIndicator(ind *Indicator, caps core.Capabilities) *View {
	if ind == nil {
		return nil
	}

	r.mu.Lock()
	if v, ok := r.index[ind]; ok {
		r.mu.Unlock()
		return v
	}
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	v := newView(ind)
	r.createVisuals(v, caps)

	r.mu.Lock()
	if existing, ok := r.index[ind]; ok {
		r.mu.Unlock()
		r.releaseVisuals(v.takeVisuals())
		return existing
	}
	if r.closed || !ind.join(r) {
		r.mu.Unlock()
		r.releaseVisuals(v.takeVisuals())
		return nil
	}
	r.index[ind] = v
	deferred := r.inPass
	if deferred {
		r.pending.Push(viewOp{kind: opAdd, view: v})
	} else {
		r.views = append(r.views, v)
	}
	r.mu.Unlock()

	r.logger.Debug("Registered indicator", "entity", ind.Entity(), "deferred", deferred)
	return v
}

// UnregisterIndicator removes the view for ind and releases its sub-visuals.
// Unknown indicators are ignored. Calls made while a pass runs take effect
// after it, and the running pass no longer touches the view.
func (r *Renderer) UnregisterIndicator(ind *Indicator) {
	if ind == nil {
		return
	}

	r.mu.Lock()
	v, ok := r.index[ind]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.index, ind)
	ind.leave(r)
	v.detached.Store(true)
	deferred := r.inPass
	if deferred {
		r.pending.Push(viewOp{kind: opRemove, view: v})
		r.mu.Unlock()
	} else {
		r.removeLocked(v)
		r.mu.Unlock()
		r.releaseVisuals(v.takeVisuals())
	}

	r.logger.Debug("Unregistered indicator", "entity", ind.Entity(), "deferred", deferred)
}

// View returns the view registered for ind.
func (r *Renderer) View(ind *Indicator) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.index[ind]
	return v, ok
}

// Views returns the views taking part in passes, in registration order.
func (r *Renderer) Views() []*View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.views)
}

// Len returns the number of registered indicators, including registrations
// still waiting for a running pass to finish.
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// Layouts snapshots every view in registration order.
func (r *Renderer) Layouts() []core.Layout {
	views := r.Views()
	out := make([]core.Layout, 0, len(views))
	for _, v := range views {
		out = append(out, v.Layout())
	}
	return out
}

// Stats returns the summary of the last pass.
func (r *Renderer) Stats() TickStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Settings returns the current configuration.
func (r *Renderer) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Apply replaces the whole configuration. The sort counter restarts when the
// interval changes.
func (r *Renderer) Apply(s Settings) {
	s = s.sanitized()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.SortInterval != r.settings.SortInterval {
		r.sortCounter = 0
	}
	r.settings = s
}

// SetViewport sets the canvas rectangle.
func (r *Renderer) SetViewport(rect core.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.Viewport = rect
}

// SetMargins sets the marker and arrow insets.
func (r *Renderer) SetMargins(margin, arrowMargin float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.Margin = margin
	r.settings.ArrowMargin = arrowMargin
}

// SetFadeDistances sets the fade interval bounds in either order.
func (r *Renderer) SetFadeDistances(near, far float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.FadeNear = near
	r.settings.FadeFar = far
}

// SetSortEnabled turns depth ordering on or off.
func (r *Renderer) SetSortEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.SortEnabled = enabled
}

// SetSortInterval sets how many ticks pass between sorts and restarts the
// sort counter. Values below 1 mean every tick.
func (r *Renderer) SetSortInterval(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.SortInterval = max(n, 1)
	r.sortCounter = 0
}

// SetSweepInterval sets how many ticks pass between reclaim sweeps.
func (r *Renderer) SetSweepInterval(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.SweepInterval = max(n, 0)
}

// SetHidden hides every view of the renderer from the next pass on.
func (r *Renderer) SetHidden(hidden bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden = hidden
}

// Hidden reports whether the renderer is hidden.
func (r *Renderer) Hidden() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden
}

// SetCamera replaces the camera. A nil camera pauses the renderer.
func (r *Renderer) SetCamera(c Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.camera = c
	r.cameraWarned = false
}

// SetCanvas replaces the screen to canvas mapping.
func (r *Renderer) SetCanvas(c CanvasSpace) {
	if c == nil {
		c = IdentityCanvas{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canvas = c
}

// Close releases every view and the renderer metrics. Later registrations
// are refused and ticks are skipped.
func (r *Renderer) Close() {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var visuals []core.Visual
	for ind, v := range r.index {
		ind.leave(r)
		v.detached.Store(true)
		visuals = append(visuals, v.takeVisuals()...)
	}
	r.index = make(map[*Indicator]*View)
	r.views = nil
	r.pending.Drain(func(viewOp) {})
	r.mu.Unlock()

	r.releaseVisuals(visuals)
	r.metrics.close()
	r.logger.Debug("Renderer closed", "released", len(visuals))
}

func (r *Renderer) createVisuals(v *View, caps core.Capabilities) {
	if r.factory == nil {
		if !caps.None() {
			r.logger.Warn("No visual factory, view has no sub-visuals", "entity", v.indicator.Entity())
		}
		return
	}
	for k := core.VisualKind(0); k < core.VisualKindCount; k++ {
		if !caps.Enabled(k) {
			continue
		}
		vis, err := r.factory.NewVisual(k, v.indicator.Entity())
		if err != nil || vis == nil {
			r.logger.Warn("Sub-visual unavailable",
				"entity", v.indicator.Entity(), "kind", k.String(), "error", err)
			continue
		}
		vis.SetActive(false)
		vis.SetAlpha(0)
		v.slots[k].visual = vis
	}
}

func (r *Renderer) releaseVisuals(visuals []core.Visual) {
	if r.factory == nil {
		return
	}
	for _, vis := range visuals {
		r.factory.ReleaseVisual(vis)
	}
}

// removeLocked drops v from the pass list. r.mu must be held.
func (r *Renderer) removeLocked(v *View) {
	if i := slices.Index(r.views, v); i >= 0 {
		r.views = slices.Delete(r.views, i, i+1)
	}
}

// applyPendingLocked replays deferred list mutations in request order and
// returns the sub-visuals of removed views. r.mu must be held.
func (r *Renderer) applyPendingLocked() []core.Visual {
	var released []core.Visual
	r.pending.Drain(func(op viewOp) {
		switch op.kind {
		case opAdd:
			if !op.view.detached.Load() {
				r.views = append(r.views, op.view)
			} else {
				released = append(released, op.view.takeVisuals()...)
			}
		case opRemove:
			r.removeLocked(op.view)
			released = append(released, op.view.takeVisuals()...)
		}
	})
	return released
}

// sweepLocked reclaims views whose entity no longer exists. r.mu must be held.
func (r *Renderer) sweepLocked() (int, []core.Visual) {
	var released []core.Visual
	n := 0
	kept := r.views[:0]
	for _, v := range r.views {
		if v.indicator.exists() {
			kept = append(kept, v)
			continue
		}
		delete(r.index, v.indicator)
		v.indicator.leave(r)
		v.detached.Store(true)
		released = append(released, v.takeVisuals()...)
		n++
		r.logger.Debug("Reclaimed view of vanished entity", "entity", v.indicator.Entity())
	}
	clear(r.views[len(kept):])
	r.views = kept
	return n, released
}

// frame is the per-pass state shared by every view.
type frame struct {
	Settings
	ctx    context.Context
	camera Camera
	canvas CanvasSpace
	camPos core.Position3D
	camFwd core.Position3D
	hidden bool
}

// Tick runs one layout pass over every registered view. Errors are absorbed:
// a pass without a camera is skipped and a failing view is hidden without
// affecting the others.
func (r *Renderer) Tick(ctx context.Context) TickStats {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	start := time.Now()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return TickStats{Skipped: true}
	}
	if r.camera == nil {
		warn := !r.cameraWarned
		r.cameraWarned = true
		r.mu.Unlock()
		if warn {
			r.logger.WarnContext(ctx, "Renderer has no camera, skipping layout")
		}
		st := TickStats{Skipped: true}
		r.metrics.record(ctx, st)
		return st
	}
	r.inPass = true
	r.ticks++
	r.sortCounter++
	f := frame{
		Settings: r.settings,
		ctx:      ctx,
		camera:   r.camera,
		canvas:   r.canvas,
		hidden:   r.hidden,
	}
	views := slices.Clone(r.views)
	tick := r.ticks
	sortDue := f.SortEnabled && r.sortCounter%f.SortInterval == 0
	sweepDue := f.SweepInterval > 0 && tick%uint64(f.SweepInterval) == 0
	r.mu.Unlock()

	var ok bool
	if f.camPos, f.camFwd, ok = r.cameraPose(ctx, f.camera); !ok {
		st := TickStats{Tick: tick, Views: len(views), Skipped: true}
		r.mu.Lock()
		r.inPass = false
		released := r.applyPendingLocked()
		r.stats = st
		r.mu.Unlock()
		r.releaseVisuals(released)
		r.metrics.record(ctx, st)
		return st
	}

	st := TickStats{Tick: tick, Views: len(views)}
	active := make([]*View, 0, len(views))
	for _, v := range views {
		if v.detached.Load() {
			continue
		}
		switch r.layoutView(v, &f) {
		case core.StateOnScreen:
			st.OnScreen++
			active = append(active, v)
		case core.StateOffScreen:
			st.OffScreen++
			active = append(active, v)
		default:
			st.Hidden++
		}
	}

	if sortDue && len(active) > 1 {
		stackByDistance(active)
		st.Sorted = true
	}

	r.mu.Lock()
	r.inPass = false
	released := r.applyPendingLocked()
	if sweepDue {
		n, swept := r.sweepLocked()
		st.Swept = n
		released = append(released, swept...)
	}
	st.Duration = time.Since(start)
	r.stats = st
	r.mu.Unlock()

	r.releaseVisuals(released)
	r.metrics.record(ctx, st)
	return st
}

// layoutView computes one view and returns its resulting state.
func (r *Renderer) layoutView(v *View, f *frame) (state core.ViewState) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(f.ctx, "Indicator layout failed", "entity", v.indicator.Entity(), "panic", p)
			state = core.StateHidden
			r.safeHide(f.ctx, v)
		}
	}()

	ind := v.indicator
	caps := ind.Capabilities()
	if f.hidden || !ind.Visible() || caps.None() || !ind.Active() {
		v.Hide()
		return core.StateHidden
	}
	target, ok := ind.WorldPosition()
	if !ok {
		v.Hide()
		return core.StateHidden
	}

	toTarget := target.Sub(f.camPos)
	v.distance = toTarget.Length()
	alpha := geo.FadeAlpha(v.distance, f.FadeNear, f.FadeFar)
	if toTarget.Dot(f.camFwd) <= 0 || alpha <= 0 {
		v.Hide()
		return core.StateHidden
	}

	screen, depth := f.camera.WorldToScreen(target)
	canvas := f.canvas.ScreenToCanvas(screen)
	if !canvas.IsFinite() {
		v.Hide()
		return core.StateHidden
	}
	v.canvas = canvas

	if depth >= 0 && geo.InsetContains(f.Viewport, f.Margin+f.ArrowMargin, canvas) {
		if !caps.OnScreen {
			v.Hide()
			return core.StateHidden
		}
		v.showOnScreen(canvas, alpha)
		return core.StateOnScreen
	}

	if !caps.OffScreen && !caps.OffScreenArrow {
		v.Hide()
		return core.StateHidden
	}
	edge := geo.ClampToRectEdge(canvas, f.Viewport, f.Margin)
	arrow := geo.ClampToRectEdge(canvas, f.Viewport, f.ArrowMargin)
	v.showOffScreen(edge, arrow, geo.Bearing(edge, canvas), alpha, caps)
	return core.StateOffScreen
}

// cameraPose reads the camera position and forward axis. ok is false when
// the camera panicked.
func (r *Renderer) cameraPose(ctx context.Context, c Camera) (pos, fwd core.Position3D, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "Camera pose unavailable, skipping layout", "panic", p)
			ok = false
		}
	}()
	return c.Position(), c.Forward(), true
}

func (r *Renderer) safeHide(ctx context.Context, v *View) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "Hiding failed view", "entity", v.indicator.Entity(), "panic", p)
			v.state = core.StateHidden
		}
	}()
	v.Hide()
}

// stackByDistance orders views farthest first and assigns stack indices
// 0..n-1, so the nearest view draws on top. Ties keep registration order.
func stackByDistance(views []*View) {
	slices.SortStableFunc(views, func(a, b *View) int {
		return cmp.Compare(b.distance, a.distance)
	})
	for i, v := range views {
		v.setStackIndex(i)
	}
}
