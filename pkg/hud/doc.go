// Package hud lays out world-anchored screen indicators.
//
// An Indicator tracks one world entity. A Renderer owns a viewport rectangle
// and a camera and keeps one View per registered Indicator. Every Tick the
// renderer decides, for each view, whether the target is drawn at its
// projected position, clamped to the viewport edge with a directional arrow,
// or hidden, fades it by camera distance and periodically restacks views so
// nearer indicators draw above farther ones.
//
// The package never draws. It drives core.Visual sinks supplied by a
// core.VisualFactory and reads the world through EntitySource and Camera.
package hud
