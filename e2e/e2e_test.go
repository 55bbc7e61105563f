package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/jabcam/internal/app"
	"github.com/ayusman/jabcam/internal/capture"
	"github.com/ayusman/jabcam/internal/config"
	"github.com/ayusman/jabcam/internal/detector"
	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/plugin"
	"github.com/ayusman/jabcam/internal/server"
	"github.com/ayusman/jabcam/internal/store"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

const configTOML = `
[camera]
motion_gate = false

[punch]
swap_sides = false

[session]
default_mode = "scoring-mode"

[plugins]
timeout_seconds = 2
queue_size = 8

[[bindings]]
side = "left"
plugin = "recorder"
action = "log"
`

// writeRecorderPlugin installs a plugin that appends every request it
// receives to requests.log in its own directory.
func writeRecorderPlugin(t *testing.T, root string) string {
	t.Helper()

	dir := filepath.Join(root, "recorder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name": "recorder", "version": "1.0.0", "executable": "run.sh", "actions": ["log"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >> requests.log\necho >> requests.log\necho '{\"success\": true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, "requests.log")
}

type stack struct {
	srv        *httptest.Server
	store      *store.Store
	app        *app.App
	dispatcher *plugin.Dispatcher
	requests   string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	tmpDir := t.TempDir()

	cfgPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte(configTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Storage.Path = filepath.Join(tmpDir, "data.db")
	cfg.Plugins.Dir = filepath.Join(tmpDir, "plugins")
	requests := writeRecorderPlugin(t, cfg.Plugins.Dir)

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	manager := plugin.NewManager(cfg.Plugins.Dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	bindings, err := cfg.PluginBindings()
	if err != nil {
		t.Fatalf("PluginBindings() error = %v", err)
	}
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(cfg.PluginTimeout()),
		cfg.Plugins.QueueSize, nil, bindings, plugin.StoreBindings{Repo: st.Bindings()})
	t.Cleanup(func() { dispatcher.Close() })

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	det := detector.NewMockDetector()
	det.SetSequence([]*detector.PoseLandmarks{detector.GuardPose(), detector.LeftJabPose()}, true)

	hub := events.NewHub(nil)
	a, err := app.New(app.Config{
		Camera:     capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		Detector:   det,
		Motion:     cfg.MotionConfig(),
		MotionGate: cfg.Camera.MotionGate,
		IdleFPS:    cfg.Camera.IdleFPS,
		ActiveFPS:  cfg.Camera.FPS,
		Settings: app.Settings{
			Mode:  cfg.SessionMode(),
			Punch: cfg.Punch,
			Rules: cfg.SessionRules(),
		},
		Store:   st,
		Sink:    events.Multi{store.NewPunchRecorder(st), hub},
		Actions: dispatcher,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	srv := httptest.NewServer(server.New(server.Config{
		Store:   st,
		Engine:  a,
		Hub:     hub,
		Plugins: manager,
	}))
	t.Cleanup(srv.Close)

	return &stack{srv: srv, store: st, app: a, dispatcher: dispatcher, requests: requests}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestE2E_PunchesDrivePluginsAndHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s := newStack(t)
	client := s.srv.Client()

	t.Run("PluginsListed", func(t *testing.T) {
		resp, err := client.Get(s.srv.URL + "/api/plugins")
		if err != nil {
			t.Fatalf("list plugins error = %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Plugins []struct {
				Name    string   `json:"name"`
				Actions []string `json:"actions"`
			} `json:"plugins"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		if len(body.Plugins) != 1 || body.Plugins[0].Name != "recorder" {
			t.Errorf("plugins = %+v, want the recorder plugin", body.Plugins)
		}
	})

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/punches"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer ws.Close()

	s.app.SetEnabled(true)
	if err := s.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("PunchStreamed", func(t *testing.T) {
		ws.SetReadDeadline(time.Now().Add(10 * time.Second))
		var e events.PunchEvent
		if err := ws.ReadJSON(&e); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if e.Side.String() != "left" {
			t.Errorf("punch side = %s, want left", e.Side)
		}
		if e.Mode != "scoring-mode" || e.Points <= 0 {
			t.Errorf("punch = %+v, want scored scoring-mode punch", e)
		}
	})

	t.Run("PluginRan", func(t *testing.T) {
		waitFor(t, "the recorder plugin", func() bool {
			data, err := os.ReadFile(s.requests)
			return err == nil && bytes.Contains(data, []byte(`"action":"log"`))
		})

		data, _ := os.ReadFile(s.requests)
		line := bytes.SplitN(bytes.TrimSpace(data), []byte("\n"), 2)[0]
		var req plugin.Request
		if err := json.Unmarshal(line, &req); err != nil {
			t.Fatalf("plugin request %q: %v", line, err)
		}
		if req.Side != "left" || req.Punch == nil {
			t.Errorf("plugin request = %+v, want a left punch", req)
		}
	})

	t.Run("HistoryStored", func(t *testing.T) {
		s.app.SetEnabled(false)

		resp, err := client.Get(s.srv.URL + "/api/sessions")
		if err != nil {
			t.Fatalf("list sessions error = %v", err)
		}
		var listed struct {
			Sessions []struct {
				ID          string `json:"id"`
				Mode        string `json:"mode"`
				LeftPunches int    `json:"left_punches"`
				EndedAt     string `json:"ended_at"`
			} `json:"sessions"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)
		resp.Body.Close()

		if len(listed.Sessions) != 1 {
			t.Fatalf("sessions = %d, want 1", len(listed.Sessions))
		}
		got := listed.Sessions[0]
		if got.Mode != "scoring-mode" || got.LeftPunches == 0 || got.EndedAt == "" {
			t.Errorf("session = %+v", got)
		}

		resp, err = client.Get(s.srv.URL + "/api/sessions/" + got.ID + "/chart")
		if err != nil {
			t.Fatalf("chart error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("chart status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	s.app.Stop()
	s.dispatcher.Close()
	if stats := s.dispatcher.Stats(); stats.Succeeded == 0 {
		t.Errorf("dispatcher stats = %+v, want successful runs", stats)
	}
}

func TestE2E_BindingsFromAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s := newStack(t)
	client := s.srv.Client()

	resp, err := client.Post(s.srv.URL+"/api/bindings", "application/json",
		strings.NewReader(`{"side": "right", "plugin": "recorder", "action": "log"}`))
	if err != nil {
		t.Fatalf("create binding error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create binding status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	resp, err = client.Post(s.srv.URL+"/api/bindings", "application/json",
		strings.NewReader(`{"side": "right", "plugin": "recorder", "action": "explode"}`))
	if err != nil {
		t.Fatalf("create binding error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unsupported action status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp, err = client.Get(s.srv.URL + "/api/bindings")
	if err != nil {
		t.Fatalf("list bindings error = %v", err)
	}
	var listed struct {
		Bindings []struct {
			Side    string `json:"side"`
			Plugin  string `json:"plugin"`
			Enabled bool   `json:"enabled"`
		} `json:"bindings"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Bindings) != 1 {
		t.Fatalf("bindings = %+v, want 1", listed.Bindings)
	}
	if b := listed.Bindings[0]; b.Side != "right" || b.Plugin != "recorder" || !b.Enabled {
		t.Errorf("binding = %+v", b)
	}

	resp, err = client.Get(s.srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}
