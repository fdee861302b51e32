package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"retrovue/internal/broadcast"
	"retrovue/internal/clock"
	"retrovue/internal/config"
	"retrovue/internal/logging"
	"retrovue/internal/notifications"
	"retrovue/internal/runtime"
	"retrovue/internal/scheduler"
	"retrovue/internal/store"
)

// Daemon coordinates the background services and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	scheduler *scheduler.Service
	director  *runtime.Director
	notifier  notifications.Service
	clock     clock.Clock
	logPath   string

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once

	mu         sync.Mutex
	lastErrors map[int64]string
}

// ChannelStatus summarizes one channel for operator tooling.
type ChannelStatus struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Mode           string    `json:"mode"`
	Viewers        int       `json:"viewers"`
	Degraded       bool      `json:"degraded"`
	HorizonThrough time.Time `json:"horizon_through"`
	LastError      string    `json:"last_error,omitempty"`
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockPath     string
	SocketPath   string
	Channels     []ChannelStatus
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Service, director *runtime.Director, notifier notifications.Service, clk clock.Clock, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sched == nil || director == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and director")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "retrovued.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logger.With(logging.String("component", "daemon")),
		store:      st,
		scheduler:  sched,
		director:   director,
		notifier:   notifier,
		clock:      clk,
		logPath:    filepath.Join(cfg.Paths.LogDir, "retrovue.log"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		done:       make(chan struct{}),
		lastErrors: make(map[int64]string),
	}, nil
}

// Start acquires the daemon lock, runs an immediate maintenance cycle,
// and launches the background maintenance loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another retrovue daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.runCycle(runCtx)
	d.wg.Add(1)
	go d.maintain(runCtx)

	d.logger.Info("daemon started", logging.Args(
		logging.String("lock", d.lockPath),
		logging.Duration("poll_interval", d.cfg.PollInterval()),
	)...)
	return nil
}

// Stop halts maintenance, stops all producers, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.director.Shutdown(stopCtx); err != nil {
		d.logger.Warn("director shutdown reported errors", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.doneOnce.Do(func() { close(d.done) })
	d.logger.Info("daemon stopped")
}

// Done is closed once the daemon has stopped, whether via signal handling
// or an IPC stop request.
func (d *Daemon) Done() <-chan struct{} { return d.done }

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// maintain drives the horizon maintenance loop until the context ends.
func (d *Daemon) maintain(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

// runCycle registers managers for active channels and extends every
// channel's horizons, each under the per-cycle timeout. One channel's
// failure never blocks another's extension.
func (d *Daemon) runCycle(ctx context.Context) {
	channels, err := d.store.ListChannels(ctx, true)
	if err != nil {
		d.logger.Error("list channels", logging.Error(err))
		return
	}

	for _, ch := range channels {
		d.ensureManager(ch)

		cycleCtx, cancel := context.WithTimeout(ctx, d.cfg.CycleTimeout())
		err := d.scheduler.ExtendHorizons(cycleCtx, ch)
		cancel()

		d.mu.Lock()
		if err != nil {
			d.lastErrors[ch.ID] = err.Error()
		} else {
			delete(d.lastErrors, ch.ID)
		}
		d.mu.Unlock()

		var gap *scheduler.ConfigurationGapError
		switch {
		case err == nil:
		case errors.As(err, &gap):
			d.logger.Warn("configuration gap", logging.Args(
				logging.String("channel", gap.Channel),
				logging.String("day", gap.BroadcastDay),
				logging.String("reason", gap.Reason),
			)...)
			_ = d.notifier.NotifyConfigurationGap(ctx, gap.Channel, gap.BroadcastDay, gap.Reason)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			d.logger.Warn("maintenance cycle timed out", logging.String("channel", ch.Name))
		default:
			d.logger.Error("extend horizons failed", logging.Args(
				logging.String("channel", ch.Name),
				logging.Error(err),
			)...)
		}
	}
}

func (d *Daemon) ensureManager(ch *broadcast.Channel) {
	if _, ok := d.director.Manager(ch.ID); ok {
		return
	}
	manager := runtime.NewChannelManager(ch, runtime.ManagerDeps{
		Schedule: d.scheduler,
		Assets:   d.store,
		Factory:  runtime.NewSimulatedFactory(time.Duration(d.cfg.Runtime.SegmentIntervalMS) * time.Millisecond),
		Notifier: d.notifier,
		Clock:    d.clock,
		Logger:   d.logger,
	}, runtime.OptionsFromConfig(d.cfg))
	d.director.Register(manager)
	d.logger.Info("channel registered", logging.String("channel", ch.Name))
}

// ExtendNow runs one maintenance cycle immediately, outside the poll
// cadence. Used by operator tooling after schedule edits.
func (d *Daemon) ExtendNow(ctx context.Context) map[string]string {
	d.runCycle(ctx)
	return d.maintenanceErrors(ctx)
}

func (d *Daemon) maintenanceErrors(ctx context.Context) map[string]string {
	channels, err := d.store.ListChannels(ctx, true)
	if err != nil {
		return map[string]string{"*": err.Error()}
	}
	out := make(map[string]string)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range channels {
		if msg, ok := d.lastErrors[ch.ID]; ok {
			out[ch.Name] = msg
		}
	}
	return out
}

// Director exposes the runtime director for IPC handlers.
func (d *Daemon) Director() *runtime.Director { return d.director }

// ResolveChannel looks a channel up by name.
func (d *Daemon) ResolveChannel(ctx context.Context, name string) (*broadcast.Channel, error) {
	return d.store.GetChannelByName(ctx, name)
}

// Health snapshots every managed channel.
func (d *Daemon) Health() []runtime.ChannelHealth {
	return d.director.Health()
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockPath:     d.lockPath,
		SocketPath:   d.cfg.Paths.SocketPath,
	}

	channels, err := d.store.ListChannels(ctx, true)
	if err != nil {
		d.logger.Warn("status channel listing failed", logging.Error(err))
		return status
	}

	d.mu.Lock()
	lastErrors := make(map[int64]string, len(d.lastErrors))
	for id, msg := range d.lastErrors {
		lastErrors[id] = msg
	}
	d.mu.Unlock()

	for _, ch := range channels {
		cs := ChannelStatus{
			ID:        ch.ID,
			Name:      ch.Name,
			State:     string(runtime.StateIdle),
			Mode:      string(runtime.ModeNormal),
			LastError: lastErrors[ch.ID],
		}
		if manager, ok := d.director.Manager(ch.ID); ok {
			health := manager.Health()
			cs.State = string(health.State)
			cs.Mode = string(health.EffectiveMode)
			cs.Viewers = health.Viewers
			cs.Degraded = health.Degraded
		}
		if through, ok, err := d.store.MaxEnd(ctx, ch.ID); err == nil && ok {
			cs.HorizonThrough = through
		}
		status.Channels = append(status.Channels, cs)
	}
	return status
}
