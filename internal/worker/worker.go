// Package worker drives the frame loop: scripted commands are dispatched,
// queued work is drained, then every renderer runs one layout pass.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/OCAP2/hud/internal/config"
	"github.com/OCAP2/hud/internal/dispatcher"
	"github.com/OCAP2/hud/internal/logging"
	"github.com/OCAP2/hud/pkg/core"
	"github.com/OCAP2/hud/pkg/hud"
)

// Dispatcher routes script commands and drains buffered handlers.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
	Wait(ctx context.Context) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Renderers  []*hud.Renderer
	Dispatcher Dispatcher
	// Output receives one JSON record per renderer per frame. Optional.
	Output io.Writer
	Logger *slog.Logger
}

// FrameRecord is the JSON line written for one renderer after a frame.
type FrameRecord struct {
	Frame    uint64        `json:"frame"`
	Renderer string        `json:"renderer"`
	Stats    hud.TickStats `json:"stats"`
	Layouts  []core.Layout `json:"layouts"`
}

// Manager runs the frame loop
type Manager struct {
	deps   Dependencies
	loop   config.LoopConfig
	logger *slog.Logger

	mu     sync.Mutex
	script Script
	next   int
	enc    *json.Encoder

	frame  atomic.Uint64
	failed atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, loop config.LoopConfig) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		deps:   deps,
		loop:   loop,
		logger: logger,
	}
	if deps.Output != nil {
		m.enc = json.NewEncoder(deps.Output)
	}
	return m
}

// SetScript replaces the pending script and rewinds it.
func (m *Manager) SetScript(s Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = s
	m.next = 0
}

// Frame returns the number of completed frames.
func (m *Manager) Frame() uint64 { return m.frame.Load() }

// Failed returns how many scripted commands were rejected.
func (m *Manager) Failed() int64 { return m.failed.Load() }

// Step runs one frame.
func (m *Manager) Step(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := m.frame.Load()
	ctx = logging.ContextWith(ctx, slog.Uint64("frame", frame))
	m.dispatchDue(ctx, frame)

	if m.deps.Dispatcher != nil {
		if err := m.deps.Dispatcher.Wait(ctx); err != nil {
			return fmt.Errorf("frame %d: waiting for queued commands: %w", frame, err)
		}
	}

	// Renderers share no view state, so their passes run in parallel.
	stats := make([]hud.TickStats, len(m.deps.Renderers))
	var wg conc.WaitGroup
	for i, r := range m.deps.Renderers {
		wg.Go(func() {
			stats[i] = r.Tick(ctx)
		})
	}
	wg.Wait()

	if m.enc != nil {
		for i, r := range m.deps.Renderers {
			rec := FrameRecord{Frame: frame, Renderer: r.Name(), Stats: stats[i], Layouts: r.Layouts()}
			if err := m.enc.Encode(rec); err != nil {
				return fmt.Errorf("frame %d: writing layouts: %w", frame, err)
			}
		}
	}

	m.frame.Add(1)
	return nil
}

// dispatchDue sends every script step scheduled at or before frame.
func (m *Manager) dispatchDue(ctx context.Context, frame uint64) {
	for m.next < len(m.script) && m.script[m.next].Frame <= frame {
		step := m.script[m.next]
		m.next++
		if m.deps.Dispatcher == nil {
			continue
		}
		_, err := m.deps.Dispatcher.Dispatch(dispatcher.Event{
			Command:   step.Command,
			Args:      step.Args,
			Frame:     frame,
			Line:      step.Line,
			Timestamp: time.Now(),
		})
		if err != nil {
			m.failed.Add(1)
			m.logger.WarnContext(ctx, "Script command failed", "line", step.Line, "command", step.Command, "error", err)
		}
	}
}

// Run steps frames at the configured rate until loop.Frames frames have
// run or ctx is done. Frames <= 0 runs until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.loop.Interval())
	defer ticker.Stop()

	m.logger.Info("Frame loop started", "rate", m.loop.Rate, "frames", m.loop.Frames)
	start := time.Now()

	done := func() bool {
		return m.loop.Frames > 0 && m.Frame() >= uint64(m.loop.Frames)
	}
	for !done() {
		if err := m.Step(ctx); err != nil {
			return err
		}
		if done() {
			break
		}
		select {
		case <-ctx.Done():
			m.logger.Info("Frame loop cancelled", "frames", m.Frame())
			return ctx.Err()
		case <-ticker.C:
		}
	}

	m.logger.Info("Frame loop finished", "frames", m.Frame(), "elapsed", time.Since(start), "failed", m.Failed())
	return nil
}
