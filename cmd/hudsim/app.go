package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/OCAP2/hud/internal/camera"
	"github.com/OCAP2/hud/internal/config"
	"github.com/OCAP2/hud/internal/dispatcher"
	"github.com/OCAP2/hud/internal/entity"
	"github.com/OCAP2/hud/internal/handlers"
	"github.com/OCAP2/hud/internal/influx"
	"github.com/OCAP2/hud/internal/logging"
	"github.com/OCAP2/hud/internal/monitor"
	"github.com/OCAP2/hud/internal/sink"
	"github.com/OCAP2/hud/internal/stream"
	"github.com/OCAP2/hud/internal/worker"
	"github.com/OCAP2/hud/pkg/core"
	"github.com/OCAP2/hud/pkg/hud"
)

// app wires every component of one simulation run.
type app struct {
	logger *slog.Logger

	rig        *camera.Rig
	factories  []*sink.Factory
	renderers  []*hud.Renderer
	store      *entity.Store
	dispatcher *dispatcher.Dispatcher
	handlers   *handlers.Service
	influx     *influx.Manager
	monitor    *monitor.Service
	worker     *worker.Manager
	output     io.WriteCloser
	stream     *stream.Streamer
}

// rendererSettings converts a renderer config into engine settings.
func rendererSettings(rc config.RendererConfig) hud.Settings {
	return hud.Settings{
		Viewport:      rc.Viewport,
		Margin:        rc.Margin,
		ArrowMargin:   rc.ArrowMargin,
		FadeNear:      rc.FadeNear,
		FadeFar:       rc.FadeFar,
		SortEnabled:   rc.SortEnabled,
		SortInterval:  rc.SortInterval,
		SweepInterval: rc.SweepInterval,
	}
}

// newApp builds the run from the loaded configuration. zl is used by the
// dispatcher and the InfluxDB manager.
func newApp(ctx context.Context, logger *slog.Logger, zl zerolog.Logger) (a *app, err error) {
	a = &app{logger: logger, store: entity.NewStore()}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	camCfg, err := config.GetCameraConfig()
	if err != nil {
		return a, err
	}
	a.rig, err = camera.NewRig(camera.Pose{
		Position: camCfg.Position,
		Forward:  camCfg.Forward,
		Up:       camCfg.Up,
	}, camCfg.FovY, camCfg.Width, camCfg.Height)
	if err != nil {
		return a, fmt.Errorf("creating camera: %w", err)
	}

	rendererCfgs, err := config.GetRendererConfigs()
	if err != nil {
		return a, err
	}
	for _, rc := range rendererCfgs {
		missing, err := rc.Missing()
		if err != nil {
			return a, err
		}
		f := sink.NewFactory(logger.With("renderer", rc.Name), missing...)
		r, err := hud.New(rc.Name, f, rendererSettings(rc),
			append([]hud.Option{hud.WithLogger(logger)}, a.rendererView(rc)...)...,
		)
		if err != nil {
			return a, fmt.Errorf("creating renderer %s: %w", rc.Name, err)
		}
		r.SetHidden(rc.Hidden)
		a.factories = append(a.factories, f)
		a.renderers = append(a.renderers, r)
	}

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zl.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return a, fmt.Errorf("creating dispatcher: %w", err)
	}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backup := filepath.Join(config.GetString("logsDir"), "influx_backup.log.gz")
		a.influx = influx.NewManager(influxCfg, zl.With().Str("component", "influx").Logger(), backup)
		if err := a.influx.Connect(ctx); err != nil {
			logger.Warn("InfluxDB unavailable, performance points disabled", "error", err)
			_ = a.influx.Close()
			a.influx = nil
		}
	}

	a.handlers = handlers.NewService(handlers.Dependencies{
		Store:     a.store,
		Rig:       a.rig,
		Renderers: a.renderers,
		Influx:    a.influx,
		Logger:    logger,
	})
	a.handlers.RegisterHandlers(a.dispatcher)

	loop := config.GetLoopConfig()
	var out io.Writer
	switch loop.Output {
	case "":
	case "-":
		out = os.Stdout
	default:
		f, err := os.Create(loop.Output)
		if err != nil {
			return a, fmt.Errorf("creating layout output: %w", err)
		}
		a.output = f
		out = f
	}

	streamCfg := config.GetStreamConfig()
	if streamCfg.Enabled {
		s := stream.New(stream.Config{URL: streamCfg.URL, Secret: streamCfg.Secret}, logger)
		if err := s.Connect(); err != nil {
			logger.Warn("Layout stream unavailable", "url", streamCfg.URL, "error", err)
		} else if err := s.Start(stream.StartSessionPayload{Session: SessionID, Renderers: a.handlers.RendererNames()}); err != nil {
			logger.Warn("Layout stream rejected session", "url", streamCfg.URL, "error", err)
			_ = s.Close()
		} else {
			a.stream = s
			if out == nil {
				out = s
			} else {
				out = io.MultiWriter(out, s)
			}
		}
	}

	a.worker = worker.NewManager(worker.Dependencies{
		Renderers:  a.renderers,
		Dispatcher: a.dispatcher,
		Output:     out,
		Logger:     logger,
	}, loop)
	if loop.Script != "" {
		script, err := loadScriptFile(loop.Script)
		if err != nil {
			return a, err
		}
		a.worker.SetScript(script)
		logger.Info("Loaded script", "path", loop.Script, "steps", len(script), "lastFrame", script.LastFrame())
	}

	a.monitor = monitor.NewService(monitor.Dependencies{
		Renderers:  a.renderers,
		Commands:   a.dispatcher,
		Influx:     a.influx,
		Logger:     logger,
		StatusPath: config.GetString("monitor.statusFile"),
		Interval:   config.GetDuration("monitor.interval"),
		Tags:       map[string]string{"session": SessionID},
	})

	return a, nil
}

// rendererView picks the camera and canvas for rc. A top-down renderer draws
// its viewport as an overhead map centred on the rig.
func (a *app) rendererView(rc config.RendererConfig) []hud.Option {
	if rc.Camera != config.CameraTopDown {
		return []hud.Option{hud.WithCamera(a.rig), hud.WithCanvas(a.rig.Canvas())}
	}
	w, h := rc.Viewport.Width(), rc.Viewport.Height()
	cam := camera.TopDown{
		Center:         core.Position3D{Z: rc.Altitude},
		Follow:         a.rig,
		MetersPerPixel: rc.MetersPerPixel,
		Width:          w,
		Height:         h,
	}
	canvas := camera.ScreenCanvas{Width: w, Height: h, Canvas: rc.Viewport}
	return []hud.Option{hud.WithCamera(cam), hud.WithCanvas(canvas)}
}

func loadScriptFile(path string) (worker.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()
	script, err := worker.LoadScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return script, nil
}

// reloadRenderers re-applies renderer settings after a config file change.
// Renderers cannot be added or removed at runtime.
func (a *app) reloadRenderers(e fsnotify.Event) {
	cfgs, err := config.GetRendererConfigs()
	if err != nil {
		a.logger.Error("Ignoring config change", "file", e.Name, "error", err)
		return
	}
	for _, rc := range cfgs {
		r, err := a.handlers.Renderer(rc.Name)
		if err != nil {
			a.logger.Warn("Config names a renderer that is not running", "renderer", rc.Name)
			continue
		}
		r.Apply(rendererSettings(rc))
		r.SetHidden(rc.Hidden)
	}
	a.logger.Info("Renderer settings reloaded", "file", e.Name)
}

// Run drives the frame loop with the monitor running alongside.
func (a *app) Run(ctx context.Context) error {
	if err := a.monitor.Start(); err != nil {
		return err
	}
	defer a.monitor.Stop()

	err := a.worker.Run(ctx)
	a.monitor.Report()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases every component. It is safe on a partially built app.
func (a *app) Close() error {
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.handlers != nil {
		a.handlers.ReleaseAll()
	}
	for _, r := range a.renderers {
		r.Close()
	}
	for _, f := range a.factories {
		created, released, live := f.Counts()
		a.logger.Debug("Visual factory closed", "created", created, "released", released, "live", live)
	}
	if a.influx != nil {
		errs = append(errs, a.influx.Close())
	}
	if a.stream != nil {
		a.logger.Debug("Layout stream closed", "frames", a.stream.Frames(), "dropped", a.stream.Dropped())
		errs = append(errs, a.stream.Close())
	}
	if a.output != nil {
		errs = append(errs, a.output.Close())
	}
	return errors.Join(errs...)
}
