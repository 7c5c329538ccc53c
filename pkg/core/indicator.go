// pkg/core/indicator.go
package core

import "fmt"

// EntityID identifies a tracked world entity.
type EntityID uint16

// VisualKind names one of the three sub-visuals a view can carry.
type VisualKind uint8

const (
	VisualOnScreen VisualKind = iota
	VisualOffScreen
	VisualOffScreenArrow

	// VisualKindCount is the number of visual kinds.
	VisualKindCount = 3
)

func (k VisualKind) String() string {
	switch k {
	case VisualOnScreen:
		return "onScreen"
	case VisualOffScreen:
		return "offScreen"
	case VisualOffScreenArrow:
		return "offScreenArrow"
	default:
		return "unknown"
	}
}

// Capabilities selects which visual kinds an indicator supports.
type Capabilities struct {
	OnScreen       bool `json:"onScreen" mapstructure:"onScreen"`
	OffScreen      bool `json:"offScreen" mapstructure:"offScreen"`
	OffScreenArrow bool `json:"offScreenArrow" mapstructure:"offScreenArrow"`
}

// AllCapabilities enables every visual kind.
func AllCapabilities() Capabilities {
	return Capabilities{OnScreen: true, OffScreen: true, OffScreenArrow: true}
}

// Enabled reports whether kind is enabled.
func (c Capabilities) Enabled(kind VisualKind) bool {
	switch kind {
	case VisualOnScreen:
		return c.OnScreen
	case VisualOffScreen:
		return c.OffScreen
	case VisualOffScreenArrow:
		return c.OffScreenArrow
	default:
		return false
	}
}

// None reports whether every kind is disabled.
func (c Capabilities) None() bool {
	return !c.OnScreen && !c.OffScreen && !c.OffScreenArrow
}

// Bits packs the flags into a bitmask indexed by VisualKind.
func (c Capabilities) Bits() uint32 {
	var b uint32
	for k := VisualKind(0); k < VisualKindCount; k++ {
		if c.Enabled(k) {
			b |= 1 << k
		}
	}
	return b
}

// CapabilitiesFromBits is the inverse of Capabilities.Bits.
func CapabilitiesFromBits(b uint32) Capabilities {
	return Capabilities{
		OnScreen:       b&(1<<VisualOnScreen) != 0,
		OffScreen:      b&(1<<VisualOffScreen) != 0,
		OffScreenArrow: b&(1<<VisualOffScreenArrow) != 0,
	}
}

// ViewState is the visibility class of a view.
type ViewState uint8

const (
	StateHidden ViewState = iota
	StateOnScreen
	StateOffScreen
)

func (s ViewState) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateOnScreen:
		return "onScreen"
	case StateOffScreen:
		return "offScreen"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s ViewState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *ViewState) UnmarshalText(b []byte) error {
	for v := StateHidden; v <= StateOffScreen; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown view state %q", b)
}

// Layout is a snapshot of what a renderer computed for one view.
type Layout struct {
	Entity     EntityID   `json:"entity"`
	State      ViewState  `json:"state"`
	Alpha      float64    `json:"alpha"`
	Distance   float64    `json:"distance"`
	Canvas     Position2D `json:"canvas"`
	Edge       Position2D `json:"edge"`
	Arrow      Position2D `json:"arrow"`
	Angle      float64    `json:"angle"`
	StackIndex int        `json:"stackIndex"`
}

// ParseVisualKind resolves a kind by its String name.
func ParseVisualKind(s string) (VisualKind, bool) {
	for k := VisualKind(0); k < VisualKindCount; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
