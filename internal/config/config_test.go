package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/hud/pkg/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"loop": { "rate": 30, "script": "demo.hud" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 30, viper.GetInt("loop.rate"))
	assert.Equal(t, "demo.hud", viper.GetString("loop.script"))
	assert.Equal(t, 600, viper.GetInt("loop.frames"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./hudlogs", viper.GetString("logsDir"))
	assert.Equal(t, 60, viper.GetInt("loop.rate"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "hud_performance", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("monitor.interval"))
	assert.Equal(t, "hudsim", viper.GetString("otel.serviceName"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetRendererConfigs_Default(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	rcs, err := GetRendererConfigs()
	require.NoError(t, err)
	require.Len(t, rcs, 1)
	assert.Equal(t, DefaultRendererConfig("main"), rcs[0])
}

func TestGetRendererConfigs_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"renderers": [
			{
				"name": "minimap",
				"viewport": { "xMin": -100, "yMin": -100, "xMax": 100, "yMax": 100 },
				"margin": 10,
				"arrowMargin": 20,
				"fadeNear": 20,
				"fadeFar": 100,
				"sortInterval": 3,
				"missingVisuals": ["offScreenArrow"]
			},
			{ "name": "main", "hidden": true }
		]
	}`)))

	rcs, err := GetRendererConfigs()
	require.NoError(t, err)
	require.Len(t, rcs, 2)

	mini := rcs[0]
	assert.Equal(t, "minimap", mini.Name)
	assert.Equal(t, core.Rect{XMin: -100, YMin: -100, XMax: 100, YMax: 100}, mini.Viewport)
	assert.Equal(t, 10.0, mini.Margin)
	assert.Equal(t, 20.0, mini.ArrowMargin)
	assert.Equal(t, 20.0, mini.FadeNear)
	assert.Equal(t, 100.0, mini.FadeFar)
	assert.Equal(t, 3, mini.SortInterval)
	assert.True(t, mini.SortEnabled)
	assert.Equal(t, 60, mini.SweepInterval)
	missing, err := mini.Missing()
	require.NoError(t, err)
	assert.Equal(t, []core.VisualKind{core.VisualOffScreenArrow}, missing)

	assert.True(t, rcs[1].Hidden)
	assert.Equal(t, DefaultRendererConfig("main").Viewport, rcs[1].Viewport)
}

func TestGetRendererConfigs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"duplicate name", `{"renderers": [{"name": "a"}, {"name": "a"}]}`},
		{"unknown visual", `{"renderers": [{"name": "a", "missingVisuals": ["halo"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))

			_, err := GetRendererConfigs()
			assert.Error(t, err)
		})
	}
}

func TestGetCameraConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"camera": { "fovY": 90, "position": { "x": 1, "y": 2, "z": 3 } }
	}`)))

	cc, err := GetCameraConfig()
	require.NoError(t, err)
	assert.Equal(t, 90.0, cc.FovY)
	assert.Equal(t, 1920.0, cc.Width)
	assert.Equal(t, core.Position3D{X: 1, Y: 2, Z: 3}, cc.Position)
	assert.Equal(t, core.Position3D{Z: 1}, cc.Forward)
	assert.Equal(t, core.Position3D{Y: 1}, cc.Up)
}

func TestGetLoopConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"loop": {"rate": 20, "frames": 5}}`)))

	lc := GetLoopConfig()
	assert.Equal(t, 20, lc.Rate)
	assert.Equal(t, 5, lc.Frames)
	assert.Equal(t, 50*time.Millisecond, lc.Interval())
	assert.Equal(t, time.Second/60, LoopConfig{}.Interval())
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "hudsim", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetInfluxAndGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "host": "influx.local" },
		"graylog": { "enabled": true }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "influx.local", ic.Host)
	assert.Equal(t, "8086", ic.Port)
	assert.Equal(t, "hud-metrics", ic.Org)

	gc := GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "localhost:12201", gc.Address)
}

func TestGetStreamConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	sc := GetStreamConfig()
	assert.False(t, sc.Enabled)
	assert.Equal(t, "ws://localhost:5000/overlay", sc.URL)
	assert.Empty(t, sc.Secret)

	viper.Set("stream.enabled", true)
	viper.Set("stream.secret", "s3cret")
	sc = GetStreamConfig()
	assert.True(t, sc.Enabled)
	assert.Equal(t, "s3cret", sc.Secret)
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"loop": {"frames": 120, "rate": 30}}`)))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("frames", 0, "")
	fs.Int("rate", 0, "")
	require.NoError(t, BindFlags(fs, map[string]string{"frames": "loop.frames", "rate": "loop.rate"}))
	require.NoError(t, fs.Parse([]string{"--frames", "5"}))

	lc := GetLoopConfig()
	assert.Equal(t, 5, lc.Frames)
	assert.Equal(t, 30, lc.Rate)

	err := BindFlags(fs, map[string]string{"missing": "loop.script"})
	assert.ErrorContains(t, err, "unknown flag")
}
