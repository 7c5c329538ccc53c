package hud

import "github.com/OCAP2/hud/pkg/core"

// Settings configures a renderer. Every field can also be changed at
// runtime through the renderer's setters.
type Settings struct {
	// Viewport is the canvas rectangle projected points are tested against.
	Viewport core.Rect
	// Margin insets the off-screen marker from the viewport edge.
	Margin float64
	// ArrowMargin insets the directional arrow from the viewport edge.
	ArrowMargin float64
	// FadeNear and FadeFar bound the distance fade. Order does not matter;
	// a bound <= 0 or equal bounds disable fading.
	FadeNear float64
	FadeFar  float64
	// SortEnabled turns on depth ordering every SortInterval ticks.
	SortEnabled  bool
	SortInterval int
	// SweepInterval is the number of ticks between reclaims of views whose
	// entity no longer exists. Zero disables sweeping.
	SweepInterval int
}

// DefaultSettings returns a 1920x1080 canvas centred on the origin with
// sorting every 10 ticks and fading disabled.
func DefaultSettings() Settings {
	return Settings{
		Viewport:      core.Rect{XMin: -960, YMin: -540, XMax: 960, YMax: 540},
		Margin:        24,
		ArrowMargin:   48,
		SortEnabled:   true,
		SortInterval:  10,
		SweepInterval: 60,
	}
}

func (s Settings) sanitized() Settings {
	if s.SortInterval < 1 {
		s.SortInterval = 1
	}
	if s.SweepInterval < 0 {
		s.SweepInterval = 0
	}
	return s
}
