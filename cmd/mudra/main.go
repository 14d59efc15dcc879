package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	log := logging.Component(logger, "main")

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	plugins := plugin.NewManager(cfg.PluginDir, logger)
	if err := plugins.Discover(); err != nil {
		log.WithError(err).Warn("plugin discovery failed")
	}
	log.WithField("count", len(plugins.List())).Info("plugins discovered")

	m := metrics.NewManager()

	w, h := cfg.ScreenSize(inject.ScreenSize())
	var injector inject.Injector = inject.NewRobot()
	if cfg.DryRun {
		injector = inject.NewRecorder()
		log.Info("dry run: input events are not injected")
	}

	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	log.WithField("detector", cfg.Detector).Info("hand detection ready")

	a, err := app.New(app.Config{
		Settings: cfg,
		Camera: capture.NewCamera(capture.Config{
			DeviceID: cfg.CameraID,
			FPS:      cfg.IdleFPS,
		}),
		Detector:     det,
		Injector:     injector,
		Store:        st,
		Plugins:      plugins,
		Metrics:      m,
		Logger:       logger,
		ScreenWidth:  w,
		ScreenHeight: h,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.LoadTemplates(); err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}

	var srv *server.Server
	if cfg.Addr != "" {
		srv = server.New(server.Config{
			StaticDir:          findWebDir(),
			Store:              st,
			Plugins:            plugins,
			Controller:         a,
			Metrics:            m.Handler(),
			OnTemplatesChanged: a.ReloadTemplates,
			OnBindingsChanged:  a.ReloadBindings,
			Preview:            a.Preview(),
			Logger:             logger,
		})
		go func() {
			log.WithField("addr", cfg.Addr).Info("starting server")
			if err := srv.ListenAndServe(cfg.Addr); err != nil {
				log.WithError(err).Error("server failed")
				stop()
			}
		}()
	}

	if cfg.Tray {
		t := tray.New(a)
		t.OnQuit(stop)
		if cfg.Addr != "" {
			t.OnSettings(func() { openBrowser(log, "http://"+cfg.Addr) })
		}
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine on macOS.
		t.Run()
	}
	<-ctx.Done()
	log.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.WithError(err).Warn("server shutdown")
		}
	}
	a.Stop()
	return nil
}

// newDetector builds the configured hand detector. MediaPipe is started
// eagerly so a missing model fails startup instead of every frame.
func newDetector(cfg *config.Config, logger logrus.FieldLogger) (detector.Detector, error) {
	if cfg.Detector == config.DetectorMock {
		return detector.NewMockDetector(), nil
	}

	mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("hand detector: %w", err)
	}
	if err := mp.Start(); err != nil {
		mp.Close()
		return nil, fmt.Errorf("hand detector: %w", err)
	}
	return mp, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}

func openBrowser(log *logrus.Entry, url string) {
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
		log.WithError(err).WithField("url", url).Warn("failed to open browser")
		return
	}
	go cmd.Wait()
}
