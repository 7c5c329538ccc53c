package entity

import (
	"sync"
	"time"

	"github.com/OCAP2/hud/pkg/core"
)

// Entity is one tracked world object.
type Entity struct {
	ID        core.EntityID   `json:"id"`
	Position  core.Position3D `json:"position"`
	Active    bool            `json:"active"`
	SpawnedAt time.Time       `json:"spawnedAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store holds the entities fed in by the host. Renderers poll it every tick
// so all lookups are a single map read under the lock.
type Store struct {
	m        sync.RWMutex
	entities map[core.EntityID]Entity
}

func NewStore() *Store {
	return &Store{
		entities: make(map[core.EntityID]Entity),
	}
}

func (s *Store) Reset() {
	s.m.Lock()
	defer s.m.Unlock()
	s.entities = make(map[core.EntityID]Entity)
}

// Spawn adds or replaces an entity.
func (s *Store) Spawn(id core.EntityID, pos core.Position3D, active bool) {
	now := time.Now()
	s.m.Lock()
	defer s.m.Unlock()
	s.entities[id] = Entity{
		ID:        id,
		Position:  pos,
		Active:    active,
		SpawnedAt: now,
		UpdatedAt: now,
	}
}

// Move updates the position of a known entity. It reports false for
// unknown ids.
func (s *Store) Move(id core.EntityID, pos core.Position3D) bool {
	s.m.Lock()
	defer s.m.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Position = pos
	e.UpdatedAt = time.Now()
	s.entities[id] = e
	return true
}

// SetActive updates the liveness flag of a known entity.
func (s *Store) SetActive(id core.EntityID, active bool) bool {
	s.m.Lock()
	defer s.m.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Active = active
	e.UpdatedAt = time.Now()
	s.entities[id] = e
	return true
}

// Despawn removes an entity. Views tracking it are reclaimed by the next
// renderer sweep.
func (s *Store) Despawn(id core.EntityID) bool {
	s.m.Lock()
	defer s.m.Unlock()
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	return true
}

func (s *Store) Get(id core.EntityID) (Entity, bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	e, ok := s.entities[id]
	return e, ok
}

func (s *Store) Len() int {
	s.m.RLock()
	defer s.m.RUnlock()
	return len(s.entities)
}

// WorldPosition implements hud.EntitySource.
func (s *Store) WorldPosition(id core.EntityID) (core.Position3D, bool) {
	s.m.RLock()
	defer s.m.RUnlock()
	if e, ok := s.entities[id]; ok {
		return e.Position, true
	}
	return core.Position3D{}, false
}

// IsActive implements hud.EntitySource. Unknown entities are inactive.
func (s *Store) IsActive(id core.EntityID) bool {
	s.m.RLock()
	defer s.m.RUnlock()
	e, ok := s.entities[id]
	return ok && e.Active
}

// Exists reports whether id is still in the store.
func (s *Store) Exists(id core.EntityID) bool {
	s.m.RLock()
	defer s.m.RUnlock()
	_, ok := s.entities[id]
	return ok
}
