package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"retrovue/internal/broadcast"
	"retrovue/internal/clock"
	"retrovue/internal/daemon"
	"retrovue/internal/ipc"
	"retrovue/internal/logging"
	"retrovue/internal/runtime"
	"retrovue/internal/scheduler"
	"retrovue/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	socketPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	socketPath := filepath.Join(base, "retrovued.sock")
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\nsocket_path = %q\n",
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		socketPath,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{configPath: configPath, socketPath: socketPath}
}

// startTestDaemon serves IPC at the environment's socket without starting
// the maintenance loop.
func (env *cliTestEnv) startTestDaemon(t *testing.T) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.SocketPath = env.socketPath
	st := testsupport.MustOpenStore(t, cfg)
	fake := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(st, st, fake, logging.NewNop())
	director := runtime.NewDirector(nil, logging.NewNop())

	d, err := daemon.New(cfg, st, sched, director, nil, fake, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("retrovue %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

func TestChannelAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "channel", "add", "retro-one", "--grid-size", "30", "--rollover", "06:00")
	requireContains(t, out, "Created channel retro-one")

	out = mustRunCLI(t, env, "channel", "list")
	requireContains(t, out, "retro-one")
	requireContains(t, out, "06:00")

	out = mustRunCLI(t, env, "channel", "deactivate", "retro-one")
	requireContains(t, out, "Deactivated channel retro-one")

	out = mustRunCLI(t, env, "channel", "list")
	requireContains(t, out, "No channels configured")
}

func TestChannelAddRejectsBadRollover(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env, "channel", "add", "retro-one", "--rollover", "25:99"); err == nil {
		t.Fatal("expected error for invalid rollover time")
	}
}

func TestTemplateBlocksAndAssignment(t *testing.T) {
	env := setupCLITestEnv(t)

	mustRunCLI(t, env, "channel", "add", "retro-one")
	mustRunCLI(t, env, "template", "add", "weekday", "--description", "weekday lineup")
	out := mustRunCLI(t, env, "template", "block", "add", "weekday",
		"--start", "06:00", "--end", "12:00", "--tag", "cartoon", "--order", "by_id")
	requireContains(t, out, "Added block 06:00-12:00")

	out = mustRunCLI(t, env, "template", "list")
	requireContains(t, out, "weekday")
	requireContains(t, out, "cartoon")
	requireContains(t, out, "by_id")

	out = mustRunCLI(t, env, "assign", "retro-one", "weekday", "2024-03-01", "--through", "2024-03-03")
	requireContains(t, out, "for 3 day(s)")
}

func TestAssignRejectsReversedRange(t *testing.T) {
	env := setupCLITestEnv(t)

	mustRunCLI(t, env, "channel", "add", "retro-one")
	mustRunCLI(t, env, "template", "add", "weekday")

	if _, err := runCLI(t, env, "assign", "retro-one", "weekday", "2024-03-03", "--through", "2024-03-01"); err == nil {
		t.Fatal("expected error for reversed date range")
	}
}

func TestAssetAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "asset", "add", "Night Court",
		"--duration", "22m", "--tag", "sitcom", "--file", "library/night-court.mkv")
	requireContains(t, out, "Added asset Night Court")

	out = mustRunCLI(t, env, "asset", "list")
	requireContains(t, out, "Night Court")
	requireContains(t, out, "22m0s")
}

func TestGuideProjectsFromTemplate(t *testing.T) {
	env := setupCLITestEnv(t)

	mustRunCLI(t, env, "channel", "add", "retro-one")
	mustRunCLI(t, env, "template", "add", "all-day")
	mustRunCLI(t, env, "template", "block", "add", "all-day",
		"--start", "00:00", "--end", "24:00", "--tag", "sitcom")

	// Cover every broadcast day the guide window can touch regardless of
	// the wall clock when the test runs.
	first := time.Now().UTC().AddDate(0, 0, -1).Format(broadcast.DateLayout)
	last := time.Now().UTC().AddDate(0, 0, 2).Format(broadcast.DateLayout)
	mustRunCLI(t, env, "assign", "retro-one", "all-day", first, "--through", last)

	out := mustRunCLI(t, env, "guide", "retro-one", "--slots", "4")
	requireContains(t, out, "Sitcom")
	requireContains(t, out, "projected")
}

func TestPlaylogEmptyWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	mustRunCLI(t, env, "channel", "add", "retro-one")
	out := mustRunCLI(t, env, "playlog", "retro-one")
	requireContains(t, out, "No scheduled events")
}

func TestStatusWhenDaemonDown(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRunCLI(t, env, "status")
	requireContains(t, out, "Daemon is not running")
}

func TestModeRequiresDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "mode", "emergency")
	if err == nil {
		t.Fatal("expected error when daemon is unreachable")
	}
	if !strings.Contains(err.Error(), "connect to daemon") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatusAgainstRunningServer(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startTestDaemon(t)

	out := mustRunCLI(t, env, "status")
	requireContains(t, out, "Daemon reachable but stopped")
}

func TestHealthAgainstRunningServer(t *testing.T) {
	env := setupCLITestEnv(t)
	env.startTestDaemon(t)

	out := mustRunCLI(t, env, "health")
	requireContains(t, out, "No channels are currently managed")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "config.toml")

	out := mustRunCLI(t, env, "config", "init", "--path", target)
	requireContains(t, out, "Wrote sample configuration")

	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}

	out = mustRunCLI(t, env, "config", "validate")
	requireContains(t, out, "Configuration valid")
}
