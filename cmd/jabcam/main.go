package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ayusman/jabcam/internal/app"
	"github.com/ayusman/jabcam/internal/capture"
	"github.com/ayusman/jabcam/internal/config"
	"github.com/ayusman/jabcam/internal/detector"
	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/logging"
	"github.com/ayusman/jabcam/internal/plugin"
	"github.com/ayusman/jabcam/internal/server"
	"github.com/ayusman/jabcam/internal/server/api"
	"github.com/ayusman/jabcam/internal/store"
	"github.com/ayusman/jabcam/internal/tray"
	"github.com/nats-io/nats.go"
)

func main() {
	configPath := flag.String("config", config.ConfigPath(), "path to the configuration file")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	withTray := flag.Bool("tray", false, "show the system tray menu")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	defer loader.Close()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()

	if err := run(loader, cfg, logger.Logger, *withTray); err != nil {
		logger.Error("jabcam stopped", "error", err)
		os.Exit(1)
	}
}

func run(loader *config.Loader, cfg *config.Config, logger *slog.Logger, withTray bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the store
	var st *store.Store
	if !cfg.Storage.Disabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		var err error
		st, err = store.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}
		defer st.Close()
	}

	// Punch event fan-out
	hub := events.NewHub(logger)
	sinks := events.Multi{hub}
	if st != nil {
		sinks = append(sinks, store.NewPunchRecorder(st))
	}
	if cfg.Events.NATSURL != "" {
		conn, err := events.Connect(cfg.Events.NATSURL, cfg.Events.ClientName)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer drain(conn, logger)
		sinks = append(sinks, events.NewNATSPublisher(conn, cfg.Events.SubjectPrefix))
		logger.Info("publishing punches to nats", "url", cfg.Events.NATSURL, "prefix", cfg.Events.SubjectPrefix)
	}

	// Plugins
	manager := plugin.NewManager(cfg.Plugins.Dir, logger)
	if err := manager.Discover(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.Plugins.Dir, "error", err)
	}
	bindings, err := cfg.PluginBindings()
	if err != nil {
		return err
	}
	sources := []plugin.BindingSource{bindings}
	if st != nil {
		sources = append(sources, plugin.StoreBindings{Repo: st.Bindings()})
	}
	dispatcher := plugin.NewDispatcher(manager, plugin.NewExecutor(cfg.PluginTimeout()),
		cfg.Plugins.QueueSize, logger, sources...)
	defer dispatcher.Close()

	// Pose detector
	var det detector.Detector
	mp, err := detector.NewMediaPipeDetector(cfg.DetectorConfig())
	if err != nil {
		logger.Warn("pose service unavailable, no punches will be detected", "error", err)
		det = detector.NewMockDetector()
	} else {
		det = mp
	}

	a, err := app.New(app.Config{
		Camera:     capture.NewCamera(cfg.CameraOptions()),
		Detector:   det,
		Motion:     cfg.MotionConfig(),
		MotionGate: cfg.Camera.MotionGate,
		IdleFPS:    cfg.Camera.IdleFPS,
		ActiveFPS:  cfg.Camera.FPS,
		Settings:   settingsFrom(cfg),
		Store:      st,
		Sink:       sinks,
		Actions:    dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	enabled := restoreEnabled(st, logger)
	a.SetEnabled(enabled)

	loader.OnChange(func(next *config.Config) {
		if err := a.ApplySettings(settingsFrom(next)); err != nil {
			logger.Warn("reloaded settings rejected", "error", err)
			return
		}
		logger.Info("settings reloaded", "mode", next.Session.DefaultMode)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", "path", loader.Path(), "error", err)
	}
	go func() {
		for err := range loader.Errors() {
			logger.Warn("config reload failed", "error", err)
		}
	}()

	if err := a.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer a.Stop()
	// Stop reloading before the app goes away.
	defer loader.Close()

	// Find web directory
	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		logger.Info("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:   webDir,
		Store:       st,
		Engine:      a,
		Hub:         hub,
		Plugins:     manager,
		StreamFPS:   cfg.Server.StreamFPS,
		JPEGQuality: cfg.Server.JPEGQuality,
		Logger:      logger,
	})
	httpServer := srv.HTTPServer(cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if withTray {
		t := tray.New(enabled)
		a.RegisterPunchCallback(t.RecordPunch)
		t.OnToggle(func(on bool) {
			a.SetEnabled(on)
			saveEnabled(st, on, logger)
		})
		t.OnDashboard(func() {
			openBrowser(dashboardURL(cfg.Server.Addr), logger)
		})
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine
		t.Run()
		stop()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	return serveErr
}

func settingsFrom(cfg *config.Config) app.Settings {
	return app.Settings{
		Mode:  cfg.SessionMode(),
		Punch: cfg.Punch,
		Rules: cfg.SessionRules(),
	}
}

// restoreEnabled reads the persisted background toggle. Detection is on
// until someone turns it off.
func restoreEnabled(st *store.Store, logger *slog.Logger) bool {
	if st == nil {
		return true
	}
	v, err := st.Settings().Get(api.SettingEnabled)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("read enabled setting", "error", err)
		}
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

func saveEnabled(st *store.Store, enabled bool, logger *slog.Logger) {
	if st == nil {
		return
	}
	if err := st.Settings().Set(api.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
		logger.Warn("save enabled setting", "error", err)
	}
}

func drain(conn *nats.Conn, logger *slog.Logger) {
	if err := conn.Drain(); err != nil {
		logger.Warn("nats drain", "error", err)
		conn.Close()
	}
}

func dashboardURL(addr string) string {
	host := addr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	return "http://" + host + "/"
}

func openBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("open dashboard", "url", url, "error", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.jabcam/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.JabcamDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
