package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibanks42/resswitch/internal/autostart"
	"github.com/ibanks42/resswitch/internal/config"
	"github.com/ibanks42/resswitch/internal/display"
	"github.com/ibanks42/resswitch/internal/gui"
	"github.com/ibanks42/resswitch/internal/monitor"
	"github.com/ibanks42/resswitch/internal/process"
	"github.com/ibanks42/resswitch/internal/watchlist"
)

const appID = "com.ibanks42.resswitch"

func runMonitor(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting resswitch",
		zap.String("version", Version),
		zap.String("config", configPath))

	store := config.NewStore(configPath, logger)
	cfg, err := store.Load()
	if err != nil {
		logger.Warn("config unreadable, starting with an empty watch list", zap.Error(err))
		cfg = config.Default()
	}

	list, err := watchlist.New(cfg.Watches...)
	if err != nil {
		return fmt.Errorf("invalid watch list: %w", err)
	}

	backend, err := display.NewBackend()
	if err != nil {
		return fmt.Errorf("failed to open display backend: %w", err)
	}
	controller := display.NewController(backend, cfg.SettleDelay(), logger)
	original, err := controller.CaptureCurrent()
	if err != nil {
		return err
	}

	pollInterval := cfg.PollDuration()
	if cmd.Flags().Changed("interval") {
		pollInterval = interval
	}

	var ui *gui.GUI
	svc := monitor.New(list, monitor.Options{
		Interval: pollInterval,
		Display:  controller,
		Matcher:  process.NewWatcher(process.NewQuerier(), logger),
		Store:    store,
		Logger:   logger,
		OnChange: func(st monitor.Status) {
			if ui != nil {
				ui.SetStatus(st)
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watcher := startConfigWatcher(logger); watcher != nil {
		defer watcher.Close()
		go forwardReloads(ctx, watcher, svc, logger)
	}

	if headless {
		logger.Info("running headless")
		return svc.Run(ctx)
	}

	a := app.NewWithID(appID)
	ui = gui.New(a, gui.Options{
		Control:      svc,
		Settings:     store,
		SetAutostart: autostartSetter(logger),
		DisplayInfo:  describeDisplay(backend, original),
		Logger:       logger,
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Run(ctx)
		fyne.Do(a.Quit)
	}()

	ui.Start()
	a.Run()

	// The app can also end on its own; the service still restores the display.
	svc.RequestShutdown()
	return <-runErr
}

func startConfigWatcher(logger *zap.Logger) *config.Watcher {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
		return nil
	}

	watcher, err := config.NewWatcher(configPath, logger)
	if err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
		return nil
	}
	watcher.Start()
	return watcher
}

// forwardReloads hands edits made to the config file by other processes (for
// example "resswitch add") to the running service.
func forwardReloads(ctx context.Context, watcher *config.Watcher, svc *monitor.Service, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-svc.Done():
			return
		case cfg := <-watcher.ConfigChan():
			if err := svc.ReplaceWatches(cfg.Watches); err != nil {
				if errors.Is(err, monitor.ErrStopped) {
					return
				}
				logger.Warn("failed to apply reloaded config", zap.Error(err))
			}
		case err := <-watcher.ErrorChan():
			logger.Warn("config reload failed", zap.Error(err))
		}
	}
}

func autostartSetter(logger *zap.Logger) func(bool) error {
	mgr, err := autostart.New()
	if err != nil {
		logger.Warn("autostart unavailable", zap.Error(err))
		return func(bool) error { return err }
	}
	return func(enable bool) error {
		return autostart.Set(mgr, enable)
	}
}

func describeDisplay(backend display.Backend, mode display.Mode) string {
	if name := display.Describe(backend); name != "" {
		return fmt.Sprintf("%s, %s", name, mode)
	}
	return mode.String()
}
