package daemon_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"retrovue/internal/broadcast"
	"retrovue/internal/clock"
	"retrovue/internal/config"
	"retrovue/internal/daemon"
	"retrovue/internal/logging"
	"retrovue/internal/runtime"
	"retrovue/internal/scheduler"
	"retrovue/internal/store"
	"retrovue/internal/testsupport"
)

type gapRecorder struct {
	mu   sync.Mutex
	gaps []string
}

func (g *gapRecorder) NotifyConfigurationGap(_ context.Context, channel, day, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gaps = append(g.gaps, channel+"|"+day)
	return nil
}

func (g *gapRecorder) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.gaps...)
}

func (g *gapRecorder) NotifyProducerStartFailure(context.Context, string, error) error { return nil }
func (g *gapRecorder) NotifyProducerCrash(context.Context, string, int, error) error   { return nil }
func (g *gapRecorder) NotifyChannelDegraded(context.Context, string, string) error     { return nil }
func (g *gapRecorder) NotifyModeChange(context.Context, string, string) error          { return nil }
func (g *gapRecorder) NotifyGlobalMode(context.Context, string) error                  { return nil }
func (g *gapRecorder) TestNotification(context.Context) error                          { return nil }

type daemonFixture struct {
	cfg      *config.Config
	store    *store.Store
	clock    *clock.Fake
	notifier *gapRecorder
	daemon   *daemon.Daemon
}

func newDaemonFixture(t *testing.T) *daemonFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fake := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	notifier := &gapRecorder{}
	sched := scheduler.New(st, st, fake, logging.NewNop())
	director := runtime.NewDirector(notifier, logging.NewNop())

	d, err := daemon.New(cfg, st, sched, director, notifier, fake, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	return &daemonFixture{cfg: cfg, store: st, clock: fake, notifier: notifier, daemon: d}
}

// seedChannel configures a channel with a full-day sitcom template assigned
// across the scheduling window.
func (f *daemonFixture) seedChannel(t *testing.T, name string) *broadcast.Channel {
	t.Helper()

	ch := testsupport.MustCreateChannel(t, f.store, name)
	tpl := testsupport.MustCreateTemplate(t, f.store, name+"-all-day", broadcast.TemplateBlock{
		Start: 0,
		End:   broadcast.MinutesPerDay,
		Rule:  broadcast.BlockRule{TagsRequired: []string{"sitcom"}},
	})
	for i := -1; i < 3; i++ {
		day := f.clock.Now().AddDate(0, 0, i).Format(broadcast.DateLayout)
		if _, err := f.store.AssignTemplate(context.Background(), ch.ID, tpl.ID, day); err != nil {
			t.Fatalf("AssignTemplate(%s): %v", day, err)
		}
	}
	testsupport.MustAddAsset(t, f.store, name+"-show", 22*time.Minute, "sitcom")
	return ch
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	f := newDaemonFixture(t)
	ctx := context.Background()

	if err := f.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := daemon.New(f.cfg, f.store,
		scheduler.New(f.store, f.store, f.clock, logging.NewNop()),
		runtime.NewDirector(nil, logging.NewNop()),
		nil, f.clock, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon start to fail")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtendNowFillsHorizonAndRegistersManager(t *testing.T) {
	f := newDaemonFixture(t)
	ctx := context.Background()
	ch := f.seedChannel(t, "retro-one")

	errs := f.daemon.ExtendNow(ctx)
	if len(errs) != 0 {
		t.Fatalf("unexpected maintenance errors: %v", errs)
	}

	count, err := f.store.CountEvents(ctx, ch.ID)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if count == 0 {
		t.Fatal("expected playlog events after maintenance cycle")
	}
	through, ok, err := f.store.MaxEnd(ctx, ch.ID)
	if err != nil || !ok {
		t.Fatalf("MaxEnd: ok=%v err=%v", ok, err)
	}
	if through.Before(f.clock.Now().Add(2 * time.Hour)) {
		t.Fatalf("horizon %s short of 2h lookahead", through)
	}

	if _, ok := f.daemon.Director().Manager(ch.ID); !ok {
		t.Fatal("expected a registered channel manager")
	}
}

func TestExtendNowReportsConfigurationGap(t *testing.T) {
	f := newDaemonFixture(t)
	ctx := context.Background()
	testsupport.MustCreateChannel(t, f.store, "retro-two")

	errs := f.daemon.ExtendNow(ctx)
	msg, ok := errs["retro-two"]
	if !ok {
		t.Fatalf("expected maintenance error for retro-two, got %v", errs)
	}
	if !strings.Contains(msg, "configuration gap") {
		t.Fatalf("unexpected error message: %s", msg)
	}
	if gaps := f.notifier.recorded(); len(gaps) == 0 {
		t.Fatal("expected a configuration gap notification")
	}
}

func TestStatusReportsChannels(t *testing.T) {
	f := newDaemonFixture(t)
	ctx := context.Background()
	ch := f.seedChannel(t, "retro-three")

	f.daemon.ExtendNow(ctx)

	status := f.daemon.Status(ctx)
	if status.Running {
		t.Fatal("daemon reported running before Start")
	}
	if len(status.Channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(status.Channels))
	}
	cs := status.Channels[0]
	if cs.ID != ch.ID || cs.Name != "retro-three" {
		t.Fatalf("unexpected channel status: %+v", cs)
	}
	if cs.State != string(runtime.StateIdle) {
		t.Fatalf("expected idle state, got %s", cs.State)
	}
	if cs.HorizonThrough.IsZero() {
		t.Fatal("expected horizon timestamp")
	}
}

func TestStopClosesDone(t *testing.T) {
	f := newDaemonFixture(t)

	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.daemon.Stop()

	select {
	case <-f.daemon.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}
