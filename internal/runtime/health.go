package runtime

import "time"

// State names a channel's lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateLive     State = "live"
	StateStopping State = "stopping"
)

// ChannelHealth is a point-in-time snapshot of a channel's runtime
// condition, served over IPC for operator tooling.
type ChannelHealth struct {
	ChannelID     int64     `json:"channel_id"`
	Channel       string    `json:"channel"`
	State         State     `json:"state"`
	Mode          Mode      `json:"mode"`
	EffectiveMode Mode      `json:"effective_mode"`
	Degraded      bool      `json:"degraded"`
	Viewers       int       `json:"viewers"`
	RecentCrashes int       `json:"recent_crashes"`
	LastError     string    `json:"last_error,omitempty"`
	LastSequence  uint64    `json:"last_sequence"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Healthy reports whether the channel needs no operator attention.
func (h ChannelHealth) Healthy() bool {
	return !h.Degraded && h.LastError == ""
}
