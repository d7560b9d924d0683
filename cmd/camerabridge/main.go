package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/camerabridge/internal/app"
	"github.com/ayusman/camerabridge/internal/config"
	"github.com/ayusman/camerabridge/internal/device"
	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/ayusman/camerabridge/internal/journal"
	"github.com/ayusman/camerabridge/internal/server"
	"github.com/ayusman/camerabridge/internal/tray"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "diagnostics server address (overrides config)")
	adapter := flag.String("adapter", "", "camera adapter: webcam, synthetic or null (overrides config)")
	autostart := flag.Bool("autostart", false, "start capturing as soon as the engine runs")
	noTray := flag.Bool("no-tray", false, "disable the system tray even when configured")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "camerabridge: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *adapter != "" {
		cfg.Camera.Adapter = *adapter
	}
	if *autostart {
		cfg.Camera.Autostart = true
	}
	if *noTray {
		cfg.Tray.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "camerabridge: invalid flags: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "camerabridge: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("camerabridge exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("camera bridge starting",
		zap.String("adapter", cfg.Camera.Adapter),
		zap.Bool("server", cfg.Server.Enabled),
		zap.Bool("journal", cfg.Journal.Enabled),
		zap.Bool("tray", cfg.Tray.Enabled))

	adapter, err := device.New(device.Config{
		Kind:        cfg.Camera.Adapter,
		FrontDevice: cfg.Camera.FrontDevice,
		BackDevice:  cfg.Camera.BackDevice,
		FPS:         cfg.Camera.FPS,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	var jr *journal.Journal
	if cfg.Journal.Enabled {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jr.Close()
	}

	// Validate has already checked both values.
	cameraType, _ := cfg.Camera.CameraType()
	quality, _ := cfg.Camera.CaptureQuality()

	a := app.New(app.Config{
		Extension: extension.New(extension.Config{
			Adapter:       adapter,
			Binder:        device.BinderFor(cfg.Camera.Adapter),
			QueueCapacity: cfg.Queue.Capacity,
			Logger:        logger,
		}),
		Journal:      jr,
		TickInterval: cfg.Engine.TickInterval(),
		Autostart:    cfg.Camera.Autostart,
		CameraType:   cameraType,
		Quality:      quality,
		Logger:       logger,
	})
	if err := a.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer a.Stop()

	var srv *server.Server
	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv = server.New(server.Config{
			Bridge:    a.Bridge(),
			Journal:   jr,
			Logger:    logger,
			StreamFPS: cfg.Camera.FPS,
		})
		go func() {
			serverErr <- srv.ListenAndServe(cfg.Server.Addr)
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("server shutdown", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tray.Enabled {
		t := tray.New(a.Bridge())
		if srv != nil {
			url := "http://" + cfg.Server.Addr + "/api/info"
			t.OnSettings(func() {
				if err := openBrowser(url); err != nil {
					logger.Warn("open diagnostics page", zap.String("url", url), zap.Error(err))
				}
			})
		}
		go func() {
			select {
			case <-ctx.Done():
			case err := <-serverErr:
				if err != nil {
					logger.Error("diagnostics server failed", zap.Error(err))
				}
			}
			t.Quit()
		}()

		// The tray needs the main thread on macOS and returns on Quit.
		t.Run()
		logger.Info("shutting down")
		return nil
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-serverErr:
		return err
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
