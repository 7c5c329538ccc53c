// Command hudsim replays a HUD command script through the indicator
// renderers and writes the computed layouts as JSON lines.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/hud/internal/config"
	"github.com/OCAP2/hud/internal/logging"
	intOtel "github.com/OCAP2/hud/internal/otel"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "hudsim"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.New(slog.DiscardHandler)

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	// graylogWriter is the optional GELF sink
	graylogWriter io.WriteCloser

	SessionStartTime time.Time = time.Now()

	// SessionID tags log records and performance points of this run
	SessionID string = uuid.NewString()
)

func main() {
	fs, opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.ShowVersion {
		fmt.Printf("%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
		return
	}

	if err := run(fs, opts); err != nil {
		Logger.Error("Run failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet, opts *cliOptions) error {
	configErr := config.Load(opts.ConfigDir)
	if err := config.BindFlags(fs, flagKeys); err != nil {
		return err
	}

	setupLogging()
	defer shutdownLogging()

	if configErr != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		Logger.Info("Loaded config", "dir", opts.ConfigDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl := logging.NewZerolog(logWriter(), config.GetString("logLevel"), AppName)
	a, err := newApp(ctx, Logger, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			Logger.Error("Error during shutdown", "error", err)
		}
	}()

	if configErr == nil {
		config.Watch(func(e fsnotify.Event) {
			a.reloadRenderers(e)
		})
	}

	Logger.Info("Starting up...", "version", CurrentVersion, "renderers", len(a.renderers))
	if err := a.Run(ctx); err != nil {
		return err
	}
	Logger.Info("Finished", "frames", a.worker.Frame(), "failedCommands", a.worker.Failed())
	return nil
}

// logWriter is the destination shared by the file handler and zerolog.
func logWriter() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.SetSession(SessionID)
	SlogManager.Setup(nil, config.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logWriter(),
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var extra []io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		graylogWriter, err = logging.NewGraylogWriter(gl.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			extra = append(extra, graylogWriter)
		}
	}

	// Re-setup logging with file output and optional sinks
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	var file io.Writer
	if LogFile != nil {
		file = LogFile
	}
	SlogManager.Setup(file, config.GetString("logLevel"), otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if graylogWriter != nil {
		graylogWriter.Close()
	}
	if LogFile != nil {
		LogFile.Close()
	}
}
