package runtime

import (
	"context"
	"testing"

	"retrovue/internal/logging"
)

func newDirectorFixture(t *testing.T) (*Director, []*managerFixture) {
	t.Helper()

	d := NewDirector(nil, logging.NewNop())
	fixtures := make([]*managerFixture, 0, 2)
	for i, name := range []string{"retro-one", "retro-two"} {
		f := newManagerFixture(t, testOptions())
		ch := f.manager.Channel()
		ch.ID = int64(i + 1)
		ch.Name = name
		d.Register(f.manager)
		fixtures = append(fixtures, f)
	}
	return d, fixtures
}

func TestDirectorGlobalModeSweepsAllChannels(t *testing.T) {
	d, fixtures := newDirectorFixture(t)
	ctx := context.Background()

	for _, f := range fixtures {
		if _, _, err := f.manager.TuneIn(ctx); err != nil {
			t.Fatalf("TuneIn: %v", err)
		}
	}

	if err := d.SetGlobalMode(ctx, ModeEmergency); err != nil {
		t.Fatalf("SetGlobalMode: %v", err)
	}
	for _, h := range d.Health() {
		if h.EffectiveMode != ModeEmergency {
			t.Fatalf("channel %s in mode %s after global takeover", h.Channel, h.EffectiveMode)
		}
	}

	if err := d.SetGlobalMode(ctx, ModeNormal); err != nil {
		t.Fatalf("restore normal: %v", err)
	}
	for _, h := range d.Health() {
		if h.EffectiveMode != ModeNormal {
			t.Fatalf("channel %s did not return to normal, mode %s", h.Channel, h.EffectiveMode)
		}
	}
}

func TestDirectorModeChangeAppliesToIdleChannels(t *testing.T) {
	d, fixtures := newDirectorFixture(t)
	ctx := context.Background()

	// No viewers anywhere; the takeover must still be recorded so idle
	// channels come up in the new mode.
	if err := d.SetGlobalMode(ctx, ModeGuide); err != nil {
		t.Fatalf("SetGlobalMode: %v", err)
	}
	f := fixtures[0]
	if _, _, err := f.manager.TuneIn(ctx); err != nil {
		t.Fatalf("TuneIn: %v", err)
	}
	if got := f.factory.last().mode; got != ModeGuide {
		t.Fatalf("idle channel started in %s after guide takeover", got)
	}
}

func TestDirectorHealthOrderedByChannel(t *testing.T) {
	d, _ := newDirectorFixture(t)

	health := d.Health()
	if len(health) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(health))
	}
	if health[0].ChannelID != 1 || health[1].ChannelID != 2 {
		t.Fatalf("health out of order: %d, %d", health[0].ChannelID, health[1].ChannelID)
	}
	for _, h := range health {
		if h.State != StateIdle {
			t.Fatalf("channel %s state %s, want idle", h.Channel, h.State)
		}
	}
}

func TestDirectorSetChannelModeUnknownChannel(t *testing.T) {
	d := NewDirector(nil, logging.NewNop())
	if err := d.SetChannelMode(context.Background(), 42, ModeGuide); err == nil {
		t.Fatal("expected error for unmanaged channel id")
	}
}

func TestDirectorShutdownStopsProducers(t *testing.T) {
	d, fixtures := newDirectorFixture(t)
	ctx := context.Background()

	for _, f := range fixtures {
		if _, _, err := f.manager.TuneIn(ctx); err != nil {
			t.Fatalf("TuneIn: %v", err)
		}
	}
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, f := range fixtures {
		if h := f.manager.Health(); h.State != StateIdle {
			t.Fatalf("channel %s state %s after shutdown", h.Channel, h.State)
		}
		select {
		case <-f.factory.last().Done():
		default:
			t.Fatalf("producer for %s still running", f.manager.Channel().Name)
		}
	}
}

var (
	_ ScheduleSource = (*fakeSchedule)(nil)
	_ AssetResolver  = fakeAssets{}
)
