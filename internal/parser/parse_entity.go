package parser

import (
	"fmt"

	"github.com/OCAP2/hud/internal/geo"
	"github.com/OCAP2/hud/pkg/core"
)

// ParseEntitySpawn parses [id, "x,y,z", active].
func (p *Parser) ParseEntitySpawn(data []string) (EntitySpawn, error) {
	var spawn EntitySpawn

	data, err := p.prepare("entity spawn", data, 3)
	if err != nil {
		return spawn, err
	}

	if spawn.ID, err = parseEntityID(data[0]); err != nil {
		return spawn, err
	}
	if spawn.Position, err = parsePosition("position", data[1]); err != nil {
		p.logger.Error("Error converting spawn position", "entity", spawn.ID, "error", err)
		return spawn, err
	}
	if spawn.Active, err = parseBool("active", data[2]); err != nil {
		return spawn, err
	}

	return spawn, nil
}

// ParseEntitySpawnGeo parses [id, longitude, latitude, altitude] and
// projects the WGS84 coordinates into Web Mercator metres.
func (p *Parser) ParseEntitySpawnGeo(data []string) (EntitySpawn, error) {
	var spawn EntitySpawn

	data, err := p.prepare("entity spawn geo", data, 4)
	if err != nil {
		return spawn, err
	}

	if spawn.ID, err = parseEntityID(data[0]); err != nil {
		return spawn, err
	}
	lon, err := parseFloat("longitude", data[1])
	if err != nil {
		return spawn, err
	}
	lat, err := parseFloat("latitude", data[2])
	if err != nil {
		return spawn, err
	}
	alt, err := parseFloat("altitude", data[3])
	if err != nil {
		return spawn, err
	}

	spawn.Position, err = geo.PositionFromLonLat(lon, lat, alt)
	if err != nil {
		return spawn, fmt.Errorf("error projecting %f,%f: %w", lon, lat, err)
	}
	spawn.Active = true

	return spawn, nil
}

// ParseEntityMove parses [id, "x,y,z"].
func (p *Parser) ParseEntityMove(data []string) (EntityMove, error) {
	var move EntityMove

	data, err := p.prepare("entity move", data, 2)
	if err != nil {
		return move, err
	}

	if move.ID, err = parseEntityID(data[0]); err != nil {
		return move, err
	}
	if move.Position, err = parsePosition("position", data[1]); err != nil {
		return move, err
	}

	return move, nil
}

// ParseEntityActive parses [id, active].
func (p *Parser) ParseEntityActive(data []string) (EntityActive, error) {
	var active EntityActive

	data, err := p.prepare("entity active", data, 2)
	if err != nil {
		return active, err
	}

	if active.ID, err = parseEntityID(data[0]); err != nil {
		return active, err
	}
	if active.Active, err = parseBool("active", data[1]); err != nil {
		return active, err
	}

	return active, nil
}

// ParseEntityID parses commands that only carry an id, such as despawn.
func (p *Parser) ParseEntityID(data []string) (core.EntityID, error) {
	data, err := p.prepare("entity id", data, 1)
	if err != nil {
		return 0, err
	}
	return parseEntityID(data[0])
}
