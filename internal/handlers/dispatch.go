package handlers

import (
	"fmt"

	"github.com/OCAP2/hud/internal/dispatcher"
	"github.com/OCAP2/hud/internal/influx"
	"github.com/OCAP2/hud/internal/util"
)

// RegisterHandlers registers all command handlers with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Entity commands - sync, so a move never lands after a later despawn or respawn
	d.Register(":ENTITY:SPAWN:", s.handleEntitySpawn, dispatcher.Logged())
	d.Register(":ENTITY:SPAWN:GEO:", s.handleEntitySpawnGeo, dispatcher.Logged())
	d.Register(":ENTITY:DESPAWN:", s.handleEntityDespawn, dispatcher.Logged())
	d.Register(":ENTITY:MOVE:", s.handleEntityMove, dispatcher.Logged())
	d.Register(":ENTITY:ACTIVE:", s.handleEntityActive, dispatcher.Logged())

	// Indicator lifecycle
	d.Register(":INDICATOR:ADD:", s.handleIndicatorAdd, dispatcher.Logged())
	d.Register(":INDICATOR:REMOVE:", s.handleIndicatorRemove, dispatcher.Logged())

	// Indicator flags
	d.Register(":INDICATOR:VISIBLE:", s.handleIndicatorVisible, dispatcher.Logged())
	d.Register(":INDICATOR:CAPS:", s.handleIndicatorCaps, dispatcher.Logged())

	// View configuration
	d.Register(":CAMERA:SET:", s.handleCameraSet, dispatcher.Logged())
	d.Register(":RENDERER:HIDDEN:", s.handleRendererHidden, dispatcher.Logged())
	d.Register(":RENDERER:SORT:", s.handleRendererSort, dispatcher.Logged())
	d.Register(":RENDERER:FADE:", s.handleRendererFade, dispatcher.Logged())
	d.Register(":RENDERER:MARGINS:", s.handleRendererMargins, dispatcher.Logged())

	// Host metrics - buffered
	d.Register(":METRIC:", s.handleMetric, dispatcher.Buffered(1000))
}

func (s *Service) handleEntitySpawn(e dispatcher.Event) (any, error) {
	spawn, err := s.deps.Parser.ParseEntitySpawn(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn entity: %w", err)
	}
	s.SpawnEntity(spawn)
	return nil, nil
}

func (s *Service) handleEntitySpawnGeo(e dispatcher.Event) (any, error) {
	spawn, err := s.deps.Parser.ParseEntitySpawnGeo(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn geo entity: %w", err)
	}
	s.SpawnEntity(spawn)
	return nil, nil
}

func (s *Service) handleEntityDespawn(e dispatcher.Event) (any, error) {
	id, err := s.deps.Parser.ParseEntityID(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to despawn entity: %w", err)
	}
	if !s.DespawnEntity(id) {
		s.logger.Debug("Despawn of unknown entity", "entity", id)
	}
	return nil, nil
}

func (s *Service) handleEntityMove(e dispatcher.Event) (any, error) {
	move, err := s.deps.Parser.ParseEntityMove(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to move entity: %w", err)
	}
	if !s.deps.Store.Move(move.ID, move.Position) {
		s.logger.Debug("Move for unknown entity", "entity", move.ID)
	}
	return nil, nil
}

func (s *Service) handleEntityActive(e dispatcher.Event) (any, error) {
	active, err := s.deps.Parser.ParseEntityActive(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set entity active: %w", err)
	}
	if !s.deps.Store.SetActive(active.ID, active.Active) {
		s.logger.Debug("Active flag for unknown entity", "entity", active.ID)
	}
	return nil, nil
}

func (s *Service) handleIndicatorAdd(e dispatcher.Event) (any, error) {
	add, err := s.deps.Parser.ParseIndicatorAdd(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to add indicator: %w", err)
	}
	return nil, s.AddIndicator(add)
}

func (s *Service) handleIndicatorRemove(e dispatcher.Event) (any, error) {
	rm, err := s.deps.Parser.ParseIndicatorRemove(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to remove indicator: %w", err)
	}
	return nil, s.RemoveIndicator(rm)
}

func (s *Service) handleIndicatorVisible(e dispatcher.Event) (any, error) {
	vis, err := s.deps.Parser.ParseIndicatorVisible(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set indicator visibility: %w", err)
	}
	ind, err := s.lookupIndicator(vis.ID)
	if err != nil {
		return nil, err
	}
	ind.SetVisible(vis.Visible)
	return nil, nil
}

func (s *Service) handleIndicatorCaps(e dispatcher.Event) (any, error) {
	caps, err := s.deps.Parser.ParseIndicatorCaps(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set indicator capabilities: %w", err)
	}
	ind, err := s.lookupIndicator(caps.ID)
	if err != nil {
		return nil, err
	}
	ind.SetCapabilities(caps.Caps)
	return nil, nil
}

func (s *Service) handleCameraSet(e dispatcher.Event) (any, error) {
	cam, err := s.deps.Parser.ParseCameraSet(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set camera: %w", err)
	}
	if s.deps.Rig == nil {
		return nil, fmt.Errorf("failed to set camera: no camera rig")
	}
	if err := s.deps.Rig.Move(cam.Position, cam.Forward); err != nil {
		return nil, fmt.Errorf("failed to set camera: %w", err)
	}
	return nil, nil
}

func (s *Service) handleRendererHidden(e dispatcher.Event) (any, error) {
	rh, err := s.deps.Parser.ParseRendererHidden(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to hide renderer: %w", err)
	}
	r, err := s.Renderer(rh.Name)
	if err != nil {
		return nil, err
	}
	r.SetHidden(rh.Hidden)
	return nil, nil
}

func (s *Service) handleRendererSort(e dispatcher.Event) (any, error) {
	rs, err := s.deps.Parser.ParseRendererSort(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to configure sorting: %w", err)
	}
	r, err := s.Renderer(rs.Name)
	if err != nil {
		return nil, err
	}
	r.SetSortEnabled(rs.Enabled)
	r.SetSortInterval(rs.Interval)
	return nil, nil
}

func (s *Service) handleRendererFade(e dispatcher.Event) (any, error) {
	rf, err := s.deps.Parser.ParseRendererFade(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to configure fading: %w", err)
	}
	r, err := s.Renderer(rf.Name)
	if err != nil {
		return nil, err
	}
	r.SetFadeDistances(rf.Near, rf.Far)
	return nil, nil
}

func (s *Service) handleRendererMargins(e dispatcher.Event) (any, error) {
	rm, err := s.deps.Parser.ParseRendererMargins(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to configure margins: %w", err)
	}
	r, err := s.Renderer(rm.Name)
	if err != nil {
		return nil, err
	}
	r.SetMargins(rm.Margin, rm.ArrowMargin)
	return nil, nil
}

func (s *Service) handleMetric(e dispatcher.Event) (any, error) {
	if s.deps.Influx == nil {
		return nil, nil
	}
	bucket, point, err := influx.ParseMetric(util.CleanArgs(e.Args))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	if err := s.deps.Influx.WritePoint(bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}
	return nil, nil
}
