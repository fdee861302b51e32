package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"retrovue/internal/logging"
	"retrovue/internal/notifications"
)

// Director coordinates channel managers station-wide: operator-facing
// mode takeovers and health reporting. Channel-local decisions stay with
// the managers; the director only sweeps.
type Director struct {
	logger   *slog.Logger
	notifier notifications.Service

	mu       sync.RWMutex
	managers map[int64]*ChannelManager
}

// NewDirector constructs an empty director.
func NewDirector(notifier notifications.Service, logger *slog.Logger) *Director {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Director{
		logger:   logger.With(logging.String("component", "director")),
		notifier: notifier,
		managers: make(map[int64]*ChannelManager),
	}
}

// Register adds a channel manager, replacing any previous manager for the
// same channel id.
func (d *Director) Register(m *ChannelManager) {
	d.mu.Lock()
	d.managers[m.Channel().ID] = m
	d.mu.Unlock()
}

// Manager returns the manager for a channel id.
func (d *Director) Manager(channelID int64) (*ChannelManager, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.managers[channelID]
	return m, ok
}

// Managers returns all registered managers ordered by channel id.
func (d *Director) Managers() []*ChannelManager {
	d.mu.RLock()
	out := make([]*ChannelManager, 0, len(d.managers))
	for _, m := range d.managers {
		out = append(out, m)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Channel().ID < out[j].Channel().ID
	})
	return out
}

// SetGlobalMode switches every channel to the given mode. The sweep is
// tolerant: one channel failing does not stop the rest, and all failures
// are reported together.
func (d *Director) SetGlobalMode(ctx context.Context, mode Mode) error {
	managers := d.Managers()
	d.logger.Info("station mode change", logging.Args(
		logging.String("mode", string(mode)),
		logging.Int("channels", len(managers)),
	)...)

	var errs []error
	for _, m := range managers {
		if err := m.SetMode(ctx, mode); err != nil {
			errs = append(errs, fmt.Errorf("channel %q: %w", m.Channel().Name, err))
		}
	}
	_ = d.notifier.NotifyGlobalMode(ctx, string(mode))
	return errors.Join(errs...)
}

// SetChannelMode switches one channel's mode.
func (d *Director) SetChannelMode(ctx context.Context, channelID int64, mode Mode) error {
	m, ok := d.Manager(channelID)
	if !ok {
		return fmt.Errorf("no managed channel with id %d", channelID)
	}
	return m.SetMode(ctx, mode)
}

// Health snapshots every managed channel, ordered by channel id.
func (d *Director) Health() []ChannelHealth {
	managers := d.Managers()
	out := make([]ChannelHealth, 0, len(managers))
	for _, m := range managers {
		out = append(out, m.Health())
	}
	return out
}

// Shutdown stops every channel's producer.
func (d *Director) Shutdown(ctx context.Context) error {
	var errs []error
	for _, m := range d.Managers() {
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
