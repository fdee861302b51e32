package runtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"retrovue/internal/logging"
)

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"normal", "emergency", "guide"} {
		mode, err := ParseMode(valid)
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", valid, err)
		}
		if string(mode) != valid {
			t.Fatalf("ParseMode(%q) = %q", valid, mode)
		}
	}
	if _, err := ParseMode("panic"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSimulatedProducerEmitsPlanLabels(t *testing.T) {
	hub := NewStreamHub(16)
	p := NewSimulatedProducer(ModeNormal, hub, 5*time.Millisecond, logging.NewNop())

	plan := Plan{
		ChannelID:   1,
		ChannelName: "retro-one",
		Mode:        ModeNormal,
		Entries: []PlanEntry{{
			CorrelationID: "corr-1",
			Title:         "Night Court Reruns",
			Duration:      22 * time.Minute,
		}},
	}
	if err := p.Start(context.Background(), plan); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	segments, _, err := hub.Fetch(ctx, 0, 4)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	seg := segments[0]
	if !strings.Contains(string(seg.Payload), "Night Court Reruns") {
		t.Fatalf("segment payload %q missing plan title", seg.Payload)
	}
	if seg.CorrelationID != "corr-1" {
		t.Fatalf("segment correlation %q, want corr-1", seg.CorrelationID)
	}
	if seg.Mode != ModeNormal {
		t.Fatalf("segment mode %s", seg.Mode)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if p.Err() != nil {
		t.Fatalf("clean stop left error %v", p.Err())
	}
}

func TestSimulatedProducerRejectsEmptyNormalPlan(t *testing.T) {
	p := NewSimulatedProducer(ModeNormal, NewStreamHub(4), time.Millisecond, logging.NewNop())
	if err := p.Start(context.Background(), Plan{Mode: ModeNormal}); err == nil {
		t.Fatal("expected error for empty normal plan")
	}
}

func TestSimulatedProducerFallbackModesNeedNoPlan(t *testing.T) {
	for _, mode := range []Mode{ModeEmergency, ModeGuide} {
		hub := NewStreamHub(8)
		p := NewSimulatedProducer(mode, hub, 5*time.Millisecond, logging.NewNop())
		if err := p.Start(context.Background(), Plan{ChannelName: "retro-one", Mode: mode}); err != nil {
			t.Fatalf("Start(%s): %v", mode, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		segments, _, err := hub.Fetch(ctx, 0, 1)
		cancel()
		if err != nil {
			t.Fatalf("Fetch(%s): %v", mode, err)
		}
		if segments[0].Mode != mode {
			t.Fatalf("segment mode %s, want %s", segments[0].Mode, mode)
		}
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		if err := p.Stop(stopCtx); err != nil {
			t.Fatalf("Stop(%s): %v", mode, err)
		}
		stopCancel()
	}
}

func TestStoppingNeverStartedProducer(t *testing.T) {
	p := NewSimulatedProducer(ModeGuide, NewStreamHub(4), time.Millisecond, logging.NewNop())
	if err := p.Stop(context.Background()); err != ErrProducerStopped {
		t.Fatalf("got %v, want ErrProducerStopped", err)
	}
}
