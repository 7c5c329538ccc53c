// Package handlers turns parsed host commands into mutations of the entity
// store, the camera rig and the renderers.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/OCAP2/hud/internal/camera"
	"github.com/OCAP2/hud/internal/entity"
	"github.com/OCAP2/hud/internal/influx"
	"github.com/OCAP2/hud/internal/parser"
	"github.com/OCAP2/hud/pkg/core"
	"github.com/OCAP2/hud/pkg/hud"
)

var (
	// ErrUnknownRenderer is returned for commands naming a renderer that was never configured.
	ErrUnknownRenderer = errors.New("unknown renderer")
	// ErrUnknownIndicator is returned when an indicator command arrives before INDICATOR:ADD.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Store     *entity.Store
	Rig       *camera.Rig
	Parser    *parser.Parser
	Renderers []*hud.Renderer
	// Influx is optional; METRIC commands are ignored without it.
	Influx *influx.Manager
	Logger *slog.Logger
}

// Service provides handler methods for host commands
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	renderers map[string]*hud.Renderer

	mu         sync.Mutex
	indicators map[core.EntityID]*hud.Indicator
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(logger)
	}
	s := &Service{
		deps:       deps,
		logger:     logger,
		renderers:  make(map[string]*hud.Renderer, len(deps.Renderers)),
		indicators: make(map[core.EntityID]*hud.Indicator),
	}
	for _, r := range deps.Renderers {
		s.renderers[r.Name()] = r
	}
	return s
}

// Renderer looks up a configured renderer by name.
func (s *Service) Renderer(name string) (*hud.Renderer, error) {
	r, ok := s.renderers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, name)
	}
	return r, nil
}

// RendererNames returns the configured renderer names, sorted.
func (s *Service) RendererNames() []string {
	names := make([]string, 0, len(s.renderers))
	for name := range s.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Indicator returns the live indicator for an entity.
func (s *Service) Indicator(id core.EntityID) (*hud.Indicator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.indicators[id]
	return ind, ok
}

// Indicators returns how many indicators are tracked.
func (s *Service) Indicators() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.indicators)
}

// indicatorFor returns the indicator for id, creating one when none exists
// or the previous one was destroyed.
func (s *Service) indicatorFor(id core.EntityID, caps core.Capabilities) *hud.Indicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	ind, ok := s.indicators[id]
	if ok && !ind.Destroyed() {
		return ind
	}
	ind = hud.NewIndicator(id, s.deps.Store, caps)
	s.indicators[id] = ind
	return ind
}

func (s *Service) lookupIndicator(id core.EntityID) (*hud.Indicator, error) {
	ind, ok := s.Indicator(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownIndicator, id)
	}
	return ind, nil
}

// SpawnEntity adds or replaces an entity in the store.
func (s *Service) SpawnEntity(spawn parser.EntitySpawn) {
	s.deps.Store.Spawn(spawn.ID, spawn.Position, spawn.Active)
}

// DespawnEntity removes the entity from the store and destroys its
// indicator, unregistering it from every renderer.
func (s *Service) DespawnEntity(id core.EntityID) bool {
	removed := s.deps.Store.Despawn(id)
	s.mu.Lock()
	ind, ok := s.indicators[id]
	delete(s.indicators, id)
	s.mu.Unlock()
	if ok {
		ind.Destroy()
	}
	return removed
}

// AddIndicator registers id's indicator with the named renderer.
func (s *Service) AddIndicator(add parser.IndicatorAdd) error {
	r, err := s.Renderer(add.Renderer)
	if err != nil {
		return err
	}
	ind := s.indicatorFor(add.ID, add.Caps)
	if v := r.RegisterIndicator(ind, add.Caps); v == nil {
		return fmt.Errorf("renderer %s refused indicator %d", add.Renderer, add.ID)
	}
	return nil
}

// RemoveIndicator unregisters from one renderer, or destroys the indicator
// when no renderer is named. Unknown indicators are ignored.
func (s *Service) RemoveIndicator(rm parser.IndicatorRemove) error {
	ind, ok := s.Indicator(rm.ID)
	if !ok {
		return nil
	}
	if rm.Renderer == "" {
		ind.Destroy()
		s.mu.Lock()
		if s.indicators[rm.ID] == ind {
			delete(s.indicators, rm.ID)
		}
		s.mu.Unlock()
		return nil
	}
	r, err := s.Renderer(rm.Renderer)
	if err != nil {
		return err
	}
	r.UnregisterIndicator(ind)
	return nil
}

// ReleaseAll destroys every indicator.
func (s *Service) ReleaseAll() {
	s.mu.Lock()
	inds := make([]*hud.Indicator, 0, len(s.indicators))
	for _, ind := range s.indicators {
		inds = append(inds, ind)
	}
	clear(s.indicators)
	s.mu.Unlock()

	for _, ind := range inds {
		ind.Destroy()
	}
}
