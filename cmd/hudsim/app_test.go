package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/hud/internal/config"
	"github.com/OCAP2/hud/internal/stream"
	"github.com/OCAP2/hud/internal/worker"
	"github.com/OCAP2/hud/pkg/core"
)

const testScript = `# one entity ahead, one behind
:ENTITY:SPAWN:|1|[0,0,10]|true
:ENTITY:SPAWN:|2|[0,0,-10]|true
:INDICATOR:ADD:|1|main|true|true|true
:INDICATOR:ADD:|2|main|true|true|true
:INDICATOR:ADD:|1|radar|true|false|true
@2
:CAMERA:SET:|[0,0,0]|[0,0,-1]
`

func setupConfig(t *testing.T, body string) string {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.hud"), []byte(testScript), 0644))
	require.NoError(t, config.Load(dir))
	viper.Set("loop.script", filepath.Join(dir, "demo.hud"))
	viper.Set("loop.output", filepath.Join(dir, "layouts.jsonl"))
	viper.Set("logsDir", dir)
	return dir
}

func readRecords(t *testing.T, path string) []worker.FrameRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []worker.FrameRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var rec worker.FrameRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	return records
}

func TestApp_RunScript(t *testing.T) {
	dir := setupConfig(t, `{
		"loop": { "rate": 1000, "frames": 3 },
		"renderers": [
			{ "name": "main" },
			{ "name": "radar", "missingVisuals": ["offScreenArrow"], "sortEnabled": false }
		]
	}`)

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, uint64(3), a.worker.Frame())
	assert.Equal(t, int64(0), a.worker.Failed())
	require.NoError(t, a.Close())

	records := readRecords(t, filepath.Join(dir, "layouts.jsonl"))
	require.Len(t, records, 6)

	first := records[0]
	assert.Equal(t, "main", first.Renderer)
	assert.Equal(t, 1, first.Stats.OnScreen)
	assert.Equal(t, 1, first.Stats.Hidden)

	radar := records[1]
	assert.Equal(t, "radar", radar.Renderer)
	require.Len(t, radar.Layouts, 1)
	assert.Equal(t, core.StateOnScreen, radar.Layouts[0].State)

	// camera turned around at frame 2
	last := records[4]
	assert.Equal(t, uint64(2), last.Frame)
	assert.Equal(t, "main", last.Renderer)
	assert.Equal(t, 1, last.Stats.OnScreen)
	for _, l := range last.Layouts {
		if l.Entity == 2 {
			assert.Equal(t, core.StateOnScreen, l.State)
		}
	}
}

func TestApp_RendererNameLoggedOnce(t *testing.T) {
	setupConfig(t, `{
		"loop": { "rate": 1000, "frames": 1 },
		"renderers": [ { "name": "main" }, { "name": "radar" } ]
	}`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, err := newApp(context.Background(), logger, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Close())

	var registered int
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, "Registered indicator") {
			continue
		}
		registered++
		assert.Equal(t, 1, strings.Count(line, "renderer="), line)
	}
	assert.Equal(t, 3, registered)
}

func TestApp_TopDownRenderer(t *testing.T) {
	dir := setupConfig(t, `{
		"loop": { "rate": 1000, "frames": 2 },
		"renderers": [
			{ "name": "main" },
			{ "name": "map", "camera": "topdown", "metersPerPixel": 2,
			  "margin": 0, "arrowMargin": 0,
			  "viewport": { "xMin": -50, "yMin": -50, "xMax": 50, "yMax": 50 } }
		]
	}`)
	script := filepath.Join(dir, "map.hud")
	require.NoError(t, os.WriteFile(script, []byte(`:ENTITY:SPAWN:|1|[40,20,0]|true
:ENTITY:SPAWN:|2|[0,400,0]|true
:INDICATOR:ADD:|1|map|true|true|true
:INDICATOR:ADD:|2|map|true|true|true
@1
:CAMERA:SET:|[0,380,5]|[0,0,1]
`), 0644))
	viper.Set("loop.script", script)

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Close())

	records := readRecords(t, filepath.Join(dir, "layouts.jsonl"))
	require.Len(t, records, 4)

	byEntity := func(rec worker.FrameRecord) map[core.EntityID]core.Layout {
		out := make(map[core.EntityID]core.Layout)
		for _, l := range rec.Layouts {
			out[l.Entity] = l
		}
		return out
	}

	first := records[1]
	require.Equal(t, "map", first.Renderer)
	layouts := byEntity(first)
	assert.Equal(t, core.StateOnScreen, layouts[1].State)
	assert.InDelta(t, 20, layouts[1].Canvas.X, 1e-9)
	assert.InDelta(t, 10, layouts[1].Canvas.Y, 1e-9)
	assert.Equal(t, core.StateOffScreen, layouts[2].State)

	// the map follows the camera
	moved := byEntity(records[3])
	assert.Equal(t, core.StateOffScreen, moved[1].State)
	assert.Equal(t, core.StateOnScreen, moved[2].State)
	assert.InDelta(t, 10, moved[2].Canvas.Y, 1e-9)
}

func TestApp_UnknownRendererCamera(t *testing.T) {
	setupConfig(t, `{"renderers": [{"name": "a", "camera": "fisheye"}]}`)

	_, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	assert.ErrorContains(t, err, "unknown camera")
}

func TestApp_MissingScript(t *testing.T) {
	setupConfig(t, `{}`)
	viper.Set("loop.script", "/nonexistent/demo.hud")

	_, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	assert.ErrorContains(t, err, "opening script")
}

func TestApp_BadRendererConfig(t *testing.T) {
	setupConfig(t, `{"renderers": [{"name": "a"}, {"name": "a"}]}`)

	_, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	assert.ErrorContains(t, err, "duplicate renderer")
}

func TestApp_ReloadRenderers(t *testing.T) {
	setupConfig(t, `{"renderers": [{"name": "main", "margin": 10}]}`)

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	viper.Set("renderers", []any{
		map[string]any{"name": "main", "margin": 32, "hidden": true},
		map[string]any{"name": "ghost"},
	})
	a.reloadRenderers(fsnotify.Event{Name: config.FileName, Op: fsnotify.Write})

	r, err := a.handlers.Renderer("main")
	require.NoError(t, err)
	assert.Equal(t, 32.0, r.Settings().Margin)
	assert.True(t, r.Hidden())
}

func TestApp_RunCancelled(t *testing.T) {
	setupConfig(t, `{"loop": {"rate": 1000, "frames": 0}}`)
	viper.Set("loop.output", "")

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Run(ctx))
	assert.LessOrEqual(t, a.worker.Frame(), uint64(1))
}

func TestApp_StreamLayouts(t *testing.T) {
	var mu sync.Mutex
	var got []stream.Envelope
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env stream.Envelope
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			mu.Lock()
			got = append(got, env)
			mu.Unlock()
			if env.Type == stream.TypeStartSession || env.Type == stream.TypeEndSession {
				ack, _ := json.Marshal(stream.AckMessage{Type: stream.TypeAck, For: env.Type})
				if c.WriteMessage(ws.TextMessage, ack) != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	dir := setupConfig(t, `{"loop": { "rate": 1000, "frames": 2 }}`)
	viper.Set("stream.enabled", true)
	viper.Set("stream.url", "ws"+strings.TrimPrefix(srv.URL, "http"))

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, a.stream)
	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Close())

	// file output still gets every record
	assert.Len(t, readRecords(t, filepath.Join(dir, "layouts.jsonl")), 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, stream.TypeStartSession, got[0].Type)
	var start stream.StartSessionPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &start))
	assert.Equal(t, SessionID, start.Session)
	assert.Equal(t, []string{"main"}, start.Renderers)

	for i, env := range got[1:3] {
		assert.Equal(t, stream.TypeFrame, env.Type)
		var rec worker.FrameRecord
		require.NoError(t, json.Unmarshal(env.Payload, &rec))
		assert.Equal(t, uint64(i), rec.Frame)
		assert.Equal(t, "main", rec.Renderer)
	}
	assert.Equal(t, stream.TypeEndSession, got[3].Type)
}

func TestApp_StreamUnavailable(t *testing.T) {
	setupConfig(t, `{"loop": { "rate": 1000, "frames": 1 }}`)
	viper.Set("stream.enabled", true)
	viper.Set("stream.url", "ws://127.0.0.1:1/overlay")

	a, err := newApp(context.Background(), slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.stream)
}
