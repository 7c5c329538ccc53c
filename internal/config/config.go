package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/hud/pkg/core"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "hud.cfg.json"

// RendererConfig describes one renderer created at startup.
type RendererConfig struct {
	Name          string    `json:"name" mapstructure:"name"`
	Viewport      core.Rect `json:"viewport" mapstructure:"viewport"`
	Margin        float64   `json:"margin" mapstructure:"margin"`
	ArrowMargin   float64   `json:"arrowMargin" mapstructure:"arrowMargin"`
	FadeNear      float64   `json:"fadeNear" mapstructure:"fadeNear"`
	FadeFar       float64   `json:"fadeFar" mapstructure:"fadeFar"`
	SortEnabled   bool      `json:"sortEnabled" mapstructure:"sortEnabled"`
	SortInterval  int       `json:"sortInterval" mapstructure:"sortInterval"`
	SweepInterval int       `json:"sweepInterval" mapstructure:"sweepInterval"`
	Hidden        bool      `json:"hidden" mapstructure:"hidden"`

	// Camera is "perspective" (the shared rig) or "topdown" (an overhead map
	// following the rig).
	Camera         string  `json:"camera" mapstructure:"camera"`
	MetersPerPixel float64 `json:"metersPerPixel" mapstructure:"metersPerPixel"`
	Altitude       float64 `json:"altitude" mapstructure:"altitude"`

	// MissingVisuals names visual kinds with no resource, e.g. "offScreenArrow".
	MissingVisuals []string `json:"missingVisuals" mapstructure:"missingVisuals"`
}

// Missing resolves MissingVisuals, rejecting unknown names.
func (rc RendererConfig) Missing() ([]core.VisualKind, error) {
	out := make([]core.VisualKind, 0, len(rc.MissingVisuals))
	for _, name := range rc.MissingVisuals {
		k, ok := core.ParseVisualKind(name)
		if !ok {
			return nil, fmt.Errorf("renderer %s: unknown visual kind %q", rc.Name, name)
		}
		out = append(out, k)
	}
	return out, nil
}

// Renderer camera kinds.
const (
	CameraPerspective = "perspective"
	CameraTopDown     = "topdown"
)

// DefaultRendererConfig matches a 1920x1080 canvas centred on the origin.
func DefaultRendererConfig(name string) RendererConfig {
	return RendererConfig{
		Name:           name,
		Viewport:       core.Rect{XMin: -960, YMin: -540, XMax: 960, YMax: 540},
		Margin:         24,
		ArrowMargin:    48,
		FadeNear:       0,
		FadeFar:        0,
		SortEnabled:    true,
		SortInterval:   10,
		SweepInterval:  60,
		Camera:         CameraPerspective,
		MetersPerPixel: 1,
		Altitude:       10000,
	}
}

// CameraConfig sets up the perspective camera rig.
type CameraConfig struct {
	FovY     float64
	Width    float64
	Height   float64
	Position core.Position3D
	Forward  core.Position3D
	Up       core.Position3D
}

// LoopConfig drives the frame loop.
type LoopConfig struct {
	Rate   int
	Frames int
	Script string
	Output string
}

// Interval returns the frame period for Rate.
func (lc LoopConfig) Interval() time.Duration {
	if lc.Rate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(lc.Rate)
}

// OTelConfig configures the OpenTelemetry log provider.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig configures the InfluxDB performance writer.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// StreamConfig configures the websocket layout stream.
type StreamConfig struct {
	Enabled bool
	URL     string
	Secret  string
}

// GraylogConfig configures the GELF log sink.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./hudlogs")

	viper.SetDefault("camera.fovY", 60.0)
	viper.SetDefault("camera.width", 1920.0)
	viper.SetDefault("camera.height", 1080.0)
	viper.SetDefault("camera.position", map[string]any{"x": 0, "y": 0, "z": 0})
	viper.SetDefault("camera.forward", map[string]any{"x": 0, "y": 0, "z": 1})
	viper.SetDefault("camera.up", map[string]any{"x": 0, "y": 1, "z": 0})

	viper.SetDefault("loop.rate", 60)
	viper.SetDefault("loop.frames", 600)
	viper.SetDefault("loop.script", "")
	viper.SetDefault("loop.output", "")

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "hud-metrics")
	viper.SetDefault("influx.bucket", "hud_performance")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5000/overlay")
	viper.SetDefault("stream.secret", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "hudsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// BindFlags binds command line flags to config keys, keyed by flag name.
// A flag set on the command line overrides the file.
func BindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Watch re-reads the config file whenever it changes and calls onChange.
func Watch(onChange func(fsnotify.Event)) {
	viper.OnConfigChange(onChange)
	viper.WatchConfig()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetRendererConfigs returns the configured renderers, each starting from
// DefaultRendererConfig. A config without renderers yields one named "main".
func GetRendererConfigs() ([]RendererConfig, error) {
	raw, ok := viper.Get("renderers").([]any)
	if !ok || len(raw) == 0 {
		return []RendererConfig{DefaultRendererConfig("main")}, nil
	}

	out := make([]RendererConfig, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, entry := range raw {
		rc := DefaultRendererConfig(fmt.Sprintf("renderer%d", i))
		if err := mapstructure.Decode(entry, &rc); err != nil {
			return nil, fmt.Errorf("decoding renderer %d: %w", i, err)
		}
		if seen[rc.Name] {
			return nil, fmt.Errorf("duplicate renderer name %q", rc.Name)
		}
		if _, err := rc.Missing(); err != nil {
			return nil, err
		}
		if rc.Camera != CameraPerspective && rc.Camera != CameraTopDown {
			return nil, fmt.Errorf("renderer %s: unknown camera %q", rc.Name, rc.Camera)
		}
		seen[rc.Name] = true
		out = append(out, rc)
	}
	return out, nil
}

func getPosition(key string) (core.Position3D, error) {
	var p core.Position3D
	if err := viper.UnmarshalKey(key, &p); err != nil {
		return p, fmt.Errorf("decoding %s: %w", key, err)
	}
	return p, nil
}

// GetCameraConfig returns the camera rig settings.
func GetCameraConfig() (CameraConfig, error) {
	cc := CameraConfig{
		FovY:   viper.GetFloat64("camera.fovY"),
		Width:  viper.GetFloat64("camera.width"),
		Height: viper.GetFloat64("camera.height"),
	}
	var err error
	if cc.Position, err = getPosition("camera.position"); err != nil {
		return cc, err
	}
	if cc.Forward, err = getPosition("camera.forward"); err != nil {
		return cc, err
	}
	if cc.Up, err = getPosition("camera.up"); err != nil {
		return cc, err
	}
	return cc, nil
}

// GetLoopConfig returns the frame loop settings.
func GetLoopConfig() LoopConfig {
	return LoopConfig{
		Rate:   viper.GetInt("loop.rate"),
		Frames: viper.GetInt("loop.frames"),
		Script: viper.GetString("loop.script"),
		Output: viper.GetString("loop.output"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetStreamConfig returns the websocket layout stream settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Secret:  viper.GetString("stream.secret"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
