// Package sink provides headless Visual implementations that record what a
// renderer asks them to show.
package sink

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/hud/pkg/core"
)

// State is the presentation state last pushed into a Recorder.
type State struct {
	Kind     core.VisualKind `json:"kind"`
	Entity   core.EntityID   `json:"entity"`
	Active   bool            `json:"active"`
	Position core.Position2D `json:"position"`
	Rotation float64         `json:"rotation"`
	Alpha    float64         `json:"alpha"`
	Stack    int             `json:"stack"`
	Changes  int             `json:"changes"`
}

// Recorder is a Visual that stores every setter call.
type Recorder struct {
	mu    sync.Mutex
	state State
}

func newRecorder(kind core.VisualKind, entity core.EntityID) *Recorder {
	return &Recorder{state: State{Kind: kind, Entity: entity, Stack: -1}}
}

func (r *Recorder) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Active = active
	r.state.Changes++
}

func (r *Recorder) SetAnchoredPosition(p core.Position2D) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Position = p
}

func (r *Recorder) SetRotation(degrees float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Rotation = degrees
}

func (r *Recorder) SetAlpha(alpha float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Alpha = alpha
}

func (r *Recorder) SetStackIndex(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Stack = index
}

// State returns a copy of the recorded state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

type visualKey struct {
	kind   core.VisualKind
	entity core.EntityID
}

// Factory hands out Recorders. Kinds marked missing fail to instantiate,
// standing in for an unavailable asset.
type Factory struct {
	logger *slog.Logger

	mu       sync.Mutex
	missing  map[core.VisualKind]bool
	live     map[*Recorder]visualKey
	created  int
	released int
}

// NewFactory creates a factory. missing lists kinds with no resource.
func NewFactory(logger *slog.Logger, missing ...core.VisualKind) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := &Factory{
		logger:  logger,
		missing: make(map[core.VisualKind]bool),
		live:    make(map[*Recorder]visualKey),
	}
	for _, k := range missing {
		f.missing[k] = true
	}
	return f
}

// NewVisual implements core.VisualFactory.
func (f *Factory) NewVisual(kind core.VisualKind, entity core.EntityID) (core.Visual, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[kind] {
		return nil, fmt.Errorf("no %s resource for entity %d", kind, entity)
	}
	r := newRecorder(kind, entity)
	f.live[r] = visualKey{kind: kind, entity: entity}
	f.created++
	return r, nil
}

// ReleaseVisual implements core.VisualFactory. Foreign visuals are ignored.
func (f *Factory) ReleaseVisual(v core.Visual) {
	r, ok := v.(*Recorder)
	if !ok {
		f.logger.Warn("Releasing visual not created by this factory", "type", fmt.Sprintf("%T", v))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[r]; !ok {
		return
	}
	delete(f.live, r)
	f.released++
}

// Lookup returns the live Recorder for an entity and kind.
func (f *Factory) Lookup(entity core.EntityID, kind core.VisualKind) (*Recorder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for r, k := range f.live {
		if k.entity == entity && k.kind == kind {
			return r, true
		}
	}
	return nil, false
}

// Counts returns created, released and live visual counts.
func (f *Factory) Counts() (created, released, live int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.released, len(f.live)
}
