package broadcast_test

import (
	"testing"
	"time"

	"retrovue/internal/broadcast"
)

func utcChannel(grid, offset, rollover int) *broadcast.Channel {
	return &broadcast.Channel{
		Name:              "Test",
		Timezone:          "UTC",
		GridSizeMinutes:   grid,
		GridOffsetMinutes: offset,
		RolloverMinutes:   rollover,
		IsActive:          true,
	}
}

func TestParseClockTime(t *testing.T) {
	cases := []struct {
		in      string
		want    broadcast.ClockTime
		wantErr bool
	}{
		{"00:00", 0, false},
		{"06:30", 390, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"06", 0, true},
		{"aa:bb", 0, true},
	}
	for _, tc := range cases {
		got, err := broadcast.ParseClockTime(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClockTime(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClockTime(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClockTime(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBroadcastDayRollover(t *testing.T) {
	ch := utcChannel(30, 0, 360) // broadcast day begins 06:00

	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2024, 1, 15, 5, 59, 0, 0, time.UTC), "2024-01-14"},
		{time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC), "2024-01-15"},
		{time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC), "2024-01-15"},
		{time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC), "2024-01-15"},
	}
	for _, tc := range cases {
		got, err := ch.BroadcastDay(tc.at)
		if err != nil {
			t.Fatalf("BroadcastDay(%v): %v", tc.at, err)
		}
		if got != tc.want {
			t.Errorf("BroadcastDay(%v) = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestDayStart(t *testing.T) {
	ch := utcChannel(30, 0, 360)
	start, err := ch.DayStart("2024-01-15")
	if err != nil {
		t.Fatalf("DayStart: %v", err)
	}
	want := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("DayStart = %v, want %v", start, want)
	}

	day, err := ch.BroadcastDay(start)
	if err != nil {
		t.Fatalf("BroadcastDay: %v", err)
	}
	if day != "2024-01-15" {
		t.Fatalf("day start maps to %q", day)
	}
}

func TestGridAlign(t *testing.T) {
	cases := []struct {
		name   string
		grid   int
		offset int
		at     time.Time
		want   time.Time
	}{
		{
			name: "floors to half hour",
			grid: 30, offset: 0,
			at:   time.Date(2024, 1, 15, 12, 17, 42, 0, time.UTC),
			want: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "boundary maps to itself",
			grid: 30, offset: 0,
			at:   time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC),
			want: time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC),
		},
		{
			name: "offset shifts boundaries",
			grid: 30, offset: 15,
			at:   time.Date(2024, 1, 15, 12, 17, 0, 0, time.UTC),
			want: time.Date(2024, 1, 15, 12, 15, 0, 0, time.UTC),
		},
		{
			name: "before first offset boundary wraps to previous day",
			grid: 30, offset: 15,
			at:   time.Date(2024, 1, 15, 0, 10, 0, 0, time.UTC),
			want: time.Date(2024, 1, 14, 23, 45, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := utcChannel(tc.grid, tc.offset, 0)
			got, err := ch.GridAlign(tc.at)
			if err != nil {
				t.Fatalf("GridAlign: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("GridAlign(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

// Boundaries are defined by the wall clock, so on DST-transition days
// they must land on the intended local time, not midnight plus an
// elapsed duration.
func TestGridAlignAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ch := &broadcast.Channel{
		Name:            "Test",
		Timezone:        "America/New_York",
		GridSizeMinutes: 45,
		IsActive:        true,
	}

	cases := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "spring forward",
			at:   time.Date(2024, 3, 10, 7, 10, 0, 0, loc),
			want: time.Date(2024, 3, 10, 6, 45, 0, 0, loc),
		},
		{
			name: "fall back",
			at:   time.Date(2024, 11, 3, 7, 10, 0, 0, loc),
			want: time.Date(2024, 11, 3, 6, 45, 0, 0, loc),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ch.GridAlign(tc.at)
			if err != nil {
				t.Fatalf("GridAlign: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("GridAlign(%v) = %v, want %v", tc.at, got.In(loc), tc.want)
			}
		})
	}
}

func TestNextWallInstantAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ch := &broadcast.Channel{
		Name:            "Test",
		Timezone:        "America/New_York",
		GridSizeMinutes: 30,
		IsActive:        true,
	}

	// 01:00 EST, before the 02:00 spring-forward jump. The 06:00 block
	// boundary must fall at 06:00 local regardless of the skipped hour.
	from := time.Date(2024, 3, 10, 1, 0, 0, 0, loc)
	got, err := ch.NextWallInstant(from, 6*60)
	if err != nil {
		t.Fatalf("NextWallInstant: %v", err)
	}
	want := time.Date(2024, 3, 10, 6, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextWallInstant = %v, want %v", got.In(loc), want)
	}
	if local := got.In(loc); local.Hour() != 6 || local.Minute() != 0 {
		t.Fatalf("boundary drifted to local %02d:%02d", local.Hour(), local.Minute())
	}
}

func TestBlockCoversWrap(t *testing.T) {
	block := &broadcast.TemplateBlock{Start: 22 * 60, End: 2 * 60} // 22:00-02:00
	for _, minute := range []int{22 * 60, 23 * 60, 0, 60} {
		if !block.Covers(minute) {
			t.Errorf("expected wrap block to cover minute %d", minute)
		}
	}
	for _, minute := range []int{2 * 60, 12 * 60, 21*60 + 59} {
		if block.Covers(minute) {
			t.Errorf("expected wrap block not to cover minute %d", minute)
		}
	}
	if got := block.WindowMinutes(); got != 4*60 {
		t.Fatalf("WindowMinutes = %d, want 240", got)
	}

	full := &broadcast.TemplateBlock{Start: 0, End: broadcast.MinutesPerDay}
	if !full.Covers(0) || !full.Covers(1439) {
		t.Fatal("full-day block should cover every minute")
	}
	if got := full.WindowMinutes(); got != 1440 {
		t.Fatalf("full day WindowMinutes = %d", got)
	}
}

func TestNextWallInstant(t *testing.T) {
	ch := utcChannel(30, 0, 0)
	from := time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC)

	end, err := ch.NextWallInstant(from, 23*60)
	if err != nil {
		t.Fatalf("NextWallInstant: %v", err)
	}
	if want := time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("NextWallInstant = %v, want %v", end, want)
	}

	// Target earlier in the wall clock than `from` lands on the next day.
	end, err = ch.NextWallInstant(from, 2*60)
	if err != nil {
		t.Fatalf("NextWallInstant: %v", err)
	}
	if want := time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("wrapped NextWallInstant = %v, want %v", end, want)
	}

	// End-of-day marker resolves to the following midnight.
	end, err = ch.NextWallInstant(from, broadcast.MinutesPerDay)
	if err != nil {
		t.Fatalf("NextWallInstant: %v", err)
	}
	if want := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("24:00 NextWallInstant = %v, want %v", end, want)
	}
}
