package broadcast

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel is a broadcast channel's identity and timing policy. Channels are
// created by operator tooling and read-only to scheduling and runtime.
type Channel struct {
	ID                int64
	Name              string
	Timezone          string
	GridSizeMinutes   int
	GridOffsetMinutes int
	RolloverMinutes   int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the channel invariants from the data model.
func (c *Channel) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("channel name must be set")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("channel %q: invalid timezone %q: %w", c.Name, c.Timezone, err)
	}
	if c.GridSizeMinutes <= 0 {
		return fmt.Errorf("channel %q: grid_size_minutes must be positive, got %d", c.Name, c.GridSizeMinutes)
	}
	if c.GridOffsetMinutes < 0 || c.GridOffsetMinutes >= c.GridSizeMinutes {
		return fmt.Errorf("channel %q: grid_offset_minutes %d outside [0, %d)", c.Name, c.GridOffsetMinutes, c.GridSizeMinutes)
	}
	if c.RolloverMinutes < 0 || c.RolloverMinutes >= 24*60 {
		return fmt.Errorf("channel %q: rollover_minutes %d outside [0, 1440)", c.Name, c.RolloverMinutes)
	}
	return nil
}

// Location resolves the channel's IANA timezone.
func (c *Channel) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("channel %q: load timezone: %w", c.Name, err)
	}
	return loc, nil
}

// Template is a named, reusable daypart programming pattern. Its blocks
// carry the actual selection rules.
type Template struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
}

// Validate checks template invariants.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template name must be set")
	}
	return nil
}

// TemplateBlock is a time-bounded content-selection rule within a template.
// Start and End are wall-clock times within a broadcast day; End at or
// before Start means the window wraps past midnight.
type TemplateBlock struct {
	ID         int64
	TemplateID int64
	Start      ClockTime
	End        ClockTime
	Rule       BlockRule
}

// Validate checks block invariants.
func (b *TemplateBlock) Validate() error {
	if b.Start < 0 || b.Start >= MinutesPerDay {
		return fmt.Errorf("block start %d outside [0, %d)", b.Start, MinutesPerDay)
	}
	if b.End <= 0 || b.End > MinutesPerDay {
		return fmt.Errorf("block end %d outside (0, %d]", b.End, MinutesPerDay)
	}
	return b.Rule.Validate()
}

// WindowMinutes is the covered span length, accounting for midnight wrap.
func (b *TemplateBlock) WindowMinutes() int {
	if b.End > b.Start {
		return int(b.End - b.Start)
	}
	return int(MinutesPerDay - b.Start + b.End)
}

// Covers reports whether the block's window contains the given wall-clock
// minute. Windows are half-open: [Start, End).
func (b *TemplateBlock) Covers(wallMinute int) bool {
	m := ClockTime(wallMinute)
	if b.End > b.Start {
		return m >= b.Start && m < b.End
	}
	return m >= b.Start || m < b.End
}

// ScheduleDay binds exactly one template to exactly one channel for one
// broadcast date. Unique on (channel, date); never mutated by scheduling.
type ScheduleDay struct {
	ID           int64
	ChannelID    int64
	TemplateID   int64
	ScheduleDate string
	CreatedAt    time.Time
}

// Validate checks assignment invariants.
func (d *ScheduleDay) Validate() error {
	if d.ChannelID <= 0 || d.TemplateID <= 0 {
		return errors.New("schedule day requires channel and template ids")
	}
	if _, err := time.Parse(DateLayout, d.ScheduleDate); err != nil {
		return fmt.Errorf("schedule date %q: %w", d.ScheduleDate, err)
	}
	return nil
}

// CatalogAsset is approved, schedulable content. The library domain owns
// these records; this core reads them only. Only canonical assets are
// eligible for selection.
type CatalogAsset struct {
	ID         int64
	Title      string
	DurationMS int64
	Tags       []string
	FileRef    string
	Canonical  bool
	CreatedAt  time.Time
}

// Duration returns the asset runtime as a duration.
func (a *CatalogAsset) Duration() time.Duration {
	return time.Duration(a.DurationMS) * time.Millisecond
}

// HasTag reports whether the asset carries the given tag.
func (a *CatalogAsset) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks asset invariants consumed by this core.
func (a *CatalogAsset) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("asset title must be set")
	}
	if a.DurationMS <= 0 {
		return fmt.Errorf("asset %q: duration_ms must be positive, got %d", a.Title, a.DurationMS)
	}
	return nil
}

// PlaylogEvent is a single resolved scheduled segment: the atomic unit of
// the playlog horizon. Events for a channel tile time contiguously with no
// gaps or overlaps; once written they change only through deliberate
// forward re-planning.
type PlaylogEvent struct {
	ID            int64
	CorrelationID string
	ChannelID     int64
	AssetID       int64
	Start         time.Time
	End           time.Time
	BroadcastDay  string
	Filler        bool
	CreatedAt     time.Time
}

// Validate checks event invariants.
func (e *PlaylogEvent) Validate() error {
	if e.ChannelID <= 0 {
		return errors.New("playlog event requires a channel id")
	}
	if e.AssetID <= 0 {
		return errors.New("playlog event requires an asset id")
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("playlog event end %v not after start %v", e.End, e.Start)
	}
	return nil
}

// Duration returns the event's scheduled length.
func (e *PlaylogEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Contains reports whether at falls within [Start, End).
func (e *PlaylogEvent) Contains(at time.Time) bool {
	return !at.Before(e.Start) && at.Before(e.End)
}
