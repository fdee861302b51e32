package ipc

import (
	"time"

	"retrovue/internal/daemon"
	"retrovue/internal/runtime"
)

// ChannelStatus mirrors the daemon's per-channel status DTO.
type ChannelStatus = daemon.ChannelStatus

// ChannelHealth mirrors the runtime health snapshot.
type ChannelHealth = runtime.ChannelHealth

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	DatabasePath string          `json:"database_path"`
	LockPath     string          `json:"lock_path"`
	SocketPath   string          `json:"socket_path"`
	Channels     []ChannelStatus `json:"channels"`
}

// HealthRequest fetches per-channel runtime health.
type HealthRequest struct{}

// HealthResponse carries a snapshot for every managed channel.
type HealthResponse struct {
	Channels  []ChannelHealth `json:"channels"`
	CheckedAt time.Time       `json:"checked_at"`
}

// SetModeRequest switches producer mode. Channel empty means station-wide.
type SetModeRequest struct {
	Channel string `json:"channel,omitempty"`
	Mode    string `json:"mode"`
}

// SetModeResponse reports the applied mode.
type SetModeResponse struct {
	Mode     string `json:"mode"`
	Channels int    `json:"channels"`
}

// ExtendRequest runs a maintenance cycle immediately.
type ExtendRequest struct{}

// ExtendResponse reports per-channel maintenance errors, empty when every
// channel extended cleanly.
type ExtendResponse struct {
	Errors map[string]string `json:"errors,omitempty"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a test alert.
type TestNotificationRequest struct{}

// TestNotificationResponse reports delivery outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
