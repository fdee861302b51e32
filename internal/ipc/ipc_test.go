package ipc_test

import (
	"context"
	"testing"
	"time"

	"retrovue/internal/clock"
	"retrovue/internal/daemon"
	"retrovue/internal/ipc"
	"retrovue/internal/logging"
	"retrovue/internal/runtime"
	"retrovue/internal/scheduler"
	"retrovue/internal/testsupport"
)

func startTestServer(t *testing.T) (*ipc.Client, *daemon.Daemon) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(st, st, fake, logging.NewNop())
	director := runtime.NewDirector(nil, logging.NewNop())

	d, err := daemon.New(cfg, st, sched, director, nil, fake, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	client, err := ipc.Dial(cfg.Paths.SocketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, d
}

func TestStatusRoundTrip(t *testing.T) {
	client, _ := startTestServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon reported running before Start")
	}
	if status.PID == 0 {
		t.Fatal("status missing pid")
	}
	if status.DatabasePath == "" || status.SocketPath == "" {
		t.Fatalf("status missing paths: %+v", status)
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	client, _ := startTestServer(t)

	if _, err := client.SetMode("", "panic"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestExtendReportsGapForUnconfiguredChannel(t *testing.T) {
	client, _ := startTestServer(t)

	resp, err := client.Extend()
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	// No channels configured: nothing to extend, nothing to report.
	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected maintenance errors: %v", resp.Errors)
	}
}

func TestHealthEmptyStation(t *testing.T) {
	client, _ := startTestServer(t)

	health, err := client.Health()
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if len(health.Channels) != 0 {
		t.Fatalf("expected no managed channels, got %d", len(health.Channels))
	}
}
