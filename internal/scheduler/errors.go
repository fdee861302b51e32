package scheduler

import (
	"errors"
	"fmt"
)

// ErrNotScheduled reports that no playlog event covers the queried
// instant. Callers decide the response: runtime falls back, tooling
// reports.
var ErrNotScheduled = errors.New("not scheduled")

// ConfigurationGapError reports that operator-supplied data is
// insufficient to schedule a channel: a missing day assignment, a block
// hole in the template, or a rule no canonical asset satisfies. It is
// actionable by operators, never auto-repaired.
type ConfigurationGapError struct {
	ChannelID    int64
	Channel      string
	BroadcastDay string
	Reason       string
}

func (e *ConfigurationGapError) Error() string {
	return fmt.Sprintf("configuration gap: channel %q day %s: %s", e.Channel, e.BroadcastDay, e.Reason)
}

// IsConfigurationGap reports whether err wraps a ConfigurationGapError.
func IsConfigurationGap(err error) bool {
	var gap *ConfigurationGapError
	return errors.As(err, &gap)
}
