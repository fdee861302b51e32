// Package daemonrun wires configuration, storage, scheduling, and the
// channel runtime into a running retrovued process. Both the retrovued
// binary and the CLI's foreground daemon command call Run.
package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"retrovue/internal/clock"
	"retrovue/internal/config"
	"retrovue/internal/daemon"
	"retrovue/internal/ipc"
	"retrovue/internal/logging"
	"retrovue/internal/notifications"
	"retrovue/internal/runtime"
	"retrovue/internal/scheduler"
	"retrovue/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the retrovue daemon and blocks until the context is canceled
// or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logCfg := *cfg
	if opts.LogLevel != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open broadcast store", logging.Error(err))
		return err
	}
	defer st.Close()

	clk := clock.NewSystem()
	notifier := notifications.NewService(cfg, clk)
	sched := scheduler.New(st, st, clk, logger,
		scheduler.WithPlaylogHorizon(cfg.PlaylogHorizon()),
		scheduler.WithEPGHorizon(cfg.EPGHorizon()),
		scheduler.WithFillerTag(cfg.Horizons.FillerTag),
	)
	director := runtime.NewDirector(notifier, logger)

	d, err := daemon.New(cfg, st, sched, director, notifier, clk, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("retrovue daemon shutting down")
		d.Stop()
	case <-d.Done():
	}
	return nil
}
