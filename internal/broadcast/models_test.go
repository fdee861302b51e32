package broadcast_test

import (
	"testing"
	"time"

	"retrovue/internal/broadcast"
)

func TestChannelValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*broadcast.Channel)
		wantErr bool
	}{
		{"valid", func(c *broadcast.Channel) {}, false},
		{"empty name", func(c *broadcast.Channel) { c.Name = " " }, true},
		{"bad timezone", func(c *broadcast.Channel) { c.Timezone = "Mars/Olympus" }, true},
		{"zero grid", func(c *broadcast.Channel) { c.GridSizeMinutes = 0 }, true},
		{"offset at grid size", func(c *broadcast.Channel) { c.GridOffsetMinutes = 30 }, true},
		{"rollover full day", func(c *broadcast.Channel) { c.RolloverMinutes = 1440 }, true},
		{"negative rollover", func(c *broadcast.Channel) { c.RolloverMinutes = -1 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := utcChannel(30, 0, 360)
			tc.mutate(ch)
			err := ch.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBlockRuleMatches(t *testing.T) {
	asset := &broadcast.CatalogAsset{
		ID:         1,
		Title:      "Pilot",
		DurationMS: 22 * 60 * 1000,
		Tags:       []string{"sitcom", "retro"},
		Canonical:  true,
	}

	cases := []struct {
		name string
		rule broadcast.BlockRule
		want bool
	}{
		{"no constraints", broadcast.BlockRule{}, true},
		{"required tag present", broadcast.BlockRule{TagsRequired: []string{"sitcom"}}, true},
		{"required tag missing", broadcast.BlockRule{TagsRequired: []string{"news"}}, false},
		{"excluded tag present", broadcast.BlockRule{TagsExcluded: []string{"retro"}}, false},
		{"within max duration", broadcast.BlockRule{MaxDurationMS: 25 * 60 * 1000}, true},
		{"over max duration", broadcast.BlockRule{MaxDurationMS: 20 * 60 * 1000}, false},
		{"under min duration", broadcast.BlockRule{MinDurationMS: 30 * 60 * 1000}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rule.Matches(asset); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBlockRuleValidate(t *testing.T) {
	bad := broadcast.BlockRule{MinDurationMS: 100, MaxDurationMS: 50}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for inverted bounds")
	}
	if err := (broadcast.BlockRule{Order: "random"}).Validate(); err == nil {
		t.Fatal("expected error for unknown order policy")
	}
	if err := (broadcast.BlockRule{TagsRequired: []string{" "}}).Validate(); err == nil {
		t.Fatal("expected error for empty tag")
	}
}

func TestPlaylogEventValidate(t *testing.T) {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ev := &broadcast.PlaylogEvent{
		ChannelID: 1,
		AssetID:   2,
		Start:     start,
		End:       start.Add(22 * time.Minute),
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	ev.End = ev.Start
	if err := ev.Validate(); err == nil {
		t.Fatal("expected error for zero-length event")
	}

	if !(&broadcast.PlaylogEvent{Start: start, End: start.Add(time.Minute)}).Contains(start) {
		t.Fatal("event should contain its start")
	}
	if (&broadcast.PlaylogEvent{Start: start, End: start.Add(time.Minute)}).Contains(start.Add(time.Minute)) {
		t.Fatal("event should not contain its end")
	}
}
