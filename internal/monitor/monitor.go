// Package monitor periodically reports renderer statistics to the log, a
// status file and InfluxDB.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/hud/internal/dispatcher"
	"github.com/OCAP2/hud/internal/influx"
	"github.com/OCAP2/hud/pkg/hud"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = 10 * time.Second

// Measurement is the InfluxDB measurement written for each renderer.
const Measurement = "renderer_tick"

// CommandsMeasurement carries the dispatcher counters.
const CommandsMeasurement = "hud_commands"

// CommandStats reports host command counters.
type CommandStats interface {
	Stats() dispatcher.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Renderers []*hud.Renderer
	// Commands is optional.
	Commands CommandStats
	// Influx is optional.
	Influx *influx.Manager
	Logger *slog.Logger
	// StatusPath, when set, is rewritten with the latest status on every report.
	StatusPath string
	Interval   time.Duration
	// Tags are added to every InfluxDB point, e.g. the session id.
	Tags map[string]string
}

// RendererStatus is one renderer's last pass plus its registered view count.
type RendererStatus struct {
	Renderer   string        `json:"renderer"`
	Registered int           `json:"registered"`
	Hidden     bool          `json:"hidden"`
	Stats      hud.TickStats `json:"stats"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		deps:     deps,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the status of every renderer, as indented JSON
// lines and as values.
func (s *Service) GetProgramStatus() (output []string, status []RendererStatus) {
	for _, r := range s.deps.Renderers {
		st := RendererStatus{
			Renderer:   r.Name(),
			Registered: r.Len(),
			Hidden:     r.Hidden(),
			Stats:      r.Stats(),
		}
		status = append(status, st)

		b, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			b = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(b))
	}
	return output, status
}

// Points converts status into InfluxDB points stamped with at.
func Points(status []RendererStatus, tags map[string]string, at time.Time) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(status))
	for _, st := range status {
		pointTags := make(map[string]string, len(tags)+1)
		for k, v := range tags {
			pointTags[k] = v
		}
		pointTags["renderer"] = st.Renderer
		points = append(points, influxdb2_write.NewPoint(
			Measurement,
			pointTags,
			map[string]any{
				"registered":  st.Registered,
				"views":       st.Stats.Views,
				"on_screen":   st.Stats.OnScreen,
				"off_screen":  st.Stats.OffScreen,
				"hidden":      st.Stats.Hidden,
				"swept":       st.Stats.Swept,
				"tick":        int64(st.Stats.Tick),
				"skipped":     st.Stats.Skipped,
				"duration_us": st.Stats.Duration.Microseconds(),
			},
			at,
		))
	}
	return points
}

// commandPoint converts dispatcher counters into one point.
func commandPoint(st dispatcher.Stats, tags map[string]string, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(CommandsMeasurement, tags, map[string]any{
		"dispatched": st.Dispatched,
		"processed":  st.Processed,
		"dropped":    st.Dropped,
		"failed":     st.Failed,
		"queued":     st.Queued,
	}, at)
}

// Report runs one monitoring cycle.
func (s *Service) Report() {
	lines, status := s.GetProgramStatus()
	now := time.Now()
	points := Points(status, s.deps.Tags, now)

	if s.deps.Commands != nil {
		cs := s.deps.Commands.Stats()
		s.logger.Debug("Command status",
			"dispatched", cs.Dispatched,
			"queued", cs.Queued,
			"dropped", cs.Dropped,
			"failed", cs.Failed)
		if b, err := json.Marshal(map[string]dispatcher.Stats{"commands": cs}); err == nil {
			lines = append(lines, string(b))
		}
		points = append(points, commandPoint(cs, s.deps.Tags, now))
	}

	for _, st := range status {
		s.logger.Debug("Renderer status",
			"renderer", st.Renderer,
			"registered", st.Registered,
			"tick", st.Stats.Tick,
			"onScreen", st.Stats.OnScreen,
			"offScreen", st.Stats.OffScreen,
			"hidden", st.Stats.Hidden,
			"duration", st.Stats.Duration)
	}

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, lines); err != nil {
			s.logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Influx != nil {
		for _, p := range points {
			if err := s.deps.Influx.WritePoint(influx.PerformanceBucket, p); err != nil {
				s.logger.Error("Error writing performance point", "error", err)
				break
			}
		}
	}
}

func writeStatusFile(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
