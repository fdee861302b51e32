package broadcast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the broadcast-day label format.
const DateLayout = "2006-01-02"

// MinutesPerDay is the number of wall-clock minutes in a schedule day.
// "24:00" parses to this value so a block can cover a full day.
const MinutesPerDay ClockTime = 24 * 60

// ClockTime is a wall-clock time expressed as minutes since local midnight.
type ClockTime int

// ParseClockTime parses "HH:MM". "24:00" is accepted as an end-of-day
// marker.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock time %q: expected HH:MM", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	if minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock time %q: minutes out of range", s)
	}
	total := ClockTime(hours*60 + minutes)
	if hours < 0 || total > MinutesPerDay || (total == MinutesPerDay && minutes != 0) {
		return 0, fmt.Errorf("clock time %q: out of range", s)
	}
	return total, nil
}

// String renders the time back to "HH:MM".
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// BroadcastDay returns the channel's programming date containing the given
// instant. The day does not roll over at local midnight but rollover_minutes
// past it, so 05:59 local with a 06:00 rollover still belongs to the
// previous date.
func (c *Channel) BroadcastDay(at time.Time) (string, error) {
	loc, err := c.Location()
	if err != nil {
		return "", err
	}
	shifted := at.In(loc).Add(-time.Duration(c.RolloverMinutes) * time.Minute)
	return shifted.Format(DateLayout), nil
}

// DayStart returns the UTC instant at which the given broadcast day begins
// on this channel.
func (c *Channel) DayStart(day string) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.ParseInLocation(DateLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("broadcast day %q: %w", day, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, c.RolloverMinutes, 0, 0, loc).UTC(), nil
}

// WallMinute returns the instant's wall-clock minute within the channel's
// local day.
func (c *Channel) WallMinute(at time.Time) (int, error) {
	loc, err := c.Location()
	if err != nil {
		return 0, err
	}
	local := at.In(loc)
	return local.Hour()*60 + local.Minute(), nil
}

// GridAlign floors the instant to the channel's grid: boundaries sit at
// grid_offset_minutes past local midnight and every grid_size_minutes
// after, computed in local time so alignment tracks the wall clock.
func (c *Channel) GridAlign(at time.Time) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := at.In(loc)
	elapsed := local.Hour()*60 + local.Minute()

	rel := elapsed - c.GridOffsetMinutes
	if rel < 0 {
		// Before the first boundary of the day: the covering slot started
		// on the previous day.
		rel -= c.GridSizeMinutes - 1
	}
	slot := rel / c.GridSizeMinutes
	// Build the boundary from wall-clock fields so it lands on the intended
	// wall time even across DST transitions; time.Date normalizes a
	// negative minute into the previous day.
	aligned := time.Date(local.Year(), local.Month(), local.Day(),
		0, c.GridOffsetMinutes+slot*c.GridSizeMinutes, 0, 0, loc)
	return aligned.UTC(), nil
}

// NextWallInstant returns the first instant strictly after `from` whose
// wall-clock minute equals target. Used to locate a block's closing
// boundary from inside its window.
func (c *Channel) NextWallInstant(from time.Time, target ClockTime) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := from.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		int(target)/60, int(target)%60, 0, 0, loc)
	if !candidate.After(from) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1,
			int(target)/60, int(target)%60, 0, 0, loc)
	}
	return candidate.UTC(), nil
}
