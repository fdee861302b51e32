package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"retrovue/internal/broadcast"
	"retrovue/internal/clock"
	"retrovue/internal/config"
	"retrovue/internal/logging"
	"retrovue/internal/notifications"
	"retrovue/internal/scheduler"
)

// ScheduleSource answers what a channel should be playing. The scheduler
// service implements it.
type ScheduleSource interface {
	GetCurrent(ctx context.Context, channelID int64, at time.Time) (*broadcast.PlaylogEvent, time.Duration, error)
	UpcomingEvents(ctx context.Context, channelID int64, from, until time.Time) ([]*broadcast.PlaylogEvent, error)
}

// AssetResolver loads catalog assets referenced by playlog events. The
// store implements it.
type AssetResolver interface {
	GetAsset(ctx context.Context, id int64) (*broadcast.CatalogAsset, error)
}

// ProducerStartFailureError reports a producer that could not be brought
// up for a channel.
type ProducerStartFailureError struct {
	Channel string
	Cause   error
}

func (e *ProducerStartFailureError) Error() string {
	return fmt.Sprintf("producer start failed for channel %q: %v", e.Channel, e.Cause)
}

func (e *ProducerStartFailureError) Unwrap() error { return e.Cause }

// Options tune the channel lifecycle.
type Options struct {
	StartTimeout    time.Duration
	StopTimeout     time.Duration
	PlanWindow      time.Duration
	RestartBackoff  time.Duration
	CrashWindow     time.Duration
	MaxRapidCrashes int
	FallbackMode    string
	SegmentInterval time.Duration
	HubCapacity     int
}

// OptionsFromConfig maps runtime configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StartTimeout:    time.Duration(cfg.Runtime.StartTimeoutSeconds) * time.Second,
		StopTimeout:     time.Duration(cfg.Runtime.StopTimeoutSeconds) * time.Second,
		PlanWindow:      time.Duration(cfg.Runtime.PlanWindowMinutes) * time.Minute,
		RestartBackoff:  time.Duration(cfg.Runtime.RestartBackoffSeconds) * time.Second,
		CrashWindow:     time.Duration(cfg.Runtime.CrashWindowSeconds) * time.Second,
		MaxRapidCrashes: cfg.Runtime.MaxRapidCrashes,
		FallbackMode:    cfg.Runtime.FallbackMode,
		SegmentInterval: time.Duration(cfg.Runtime.SegmentIntervalMS) * time.Millisecond,
		HubCapacity:     cfg.Runtime.HubCapacity,
	}
}

func (o *Options) normalize() {
	if o.StartTimeout <= 0 {
		o.StartTimeout = 10 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	if o.PlanWindow <= 0 {
		o.PlanWindow = 30 * time.Minute
	}
	if o.RestartBackoff <= 0 {
		o.RestartBackoff = 5 * time.Second
	}
	if o.CrashWindow <= 0 {
		o.CrashWindow = 5 * time.Minute
	}
	if o.MaxRapidCrashes <= 0 {
		o.MaxRapidCrashes = 3
	}
	if o.FallbackMode == "" {
		o.FallbackMode = config.FallbackGuide
	}
	if o.HubCapacity <= 0 {
		o.HubCapacity = 256
	}
}

// ManagerDeps collects the collaborators a ChannelManager needs.
type ManagerDeps struct {
	Schedule ScheduleSource
	Assets   AssetResolver
	Factory  ProducerFactory
	Notifier notifications.Service
	Clock    clock.Clock
	Logger   *slog.Logger
}

// ChannelManager owns one channel's playout lifecycle: Idle until the
// first viewer arrives, a single producer while Live regardless of viewer
// count, torn down when the last viewer leaves. All viewers share the
// channel's StreamHub, which survives producer swaps.
type ChannelManager struct {
	channel  *broadcast.Channel
	schedule ScheduleSource
	assets   AssetResolver
	factory  ProducerFactory
	notifier notifications.Service
	clock    clock.Clock
	logger   *slog.Logger
	opts     Options
	hub      *StreamHub

	mu               sync.Mutex
	state            State
	mode             Mode
	effectiveMode    Mode
	producer         Producer
	generation       uint64
	viewers          map[string]struct{}
	starting         chan struct{}
	stopping         chan struct{}
	startErr         error
	lastError        string
	crashTimes       []time.Time
	degraded         bool
	nextStartAllowed time.Time
}

// NewChannelManager constructs an idle manager for the channel.
func NewChannelManager(ch *broadcast.Channel, deps ManagerDeps, opts Options) *ChannelManager {
	opts.normalize()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &ChannelManager{
		channel:  ch,
		schedule: deps.Schedule,
		assets:   deps.Assets,
		factory:  deps.Factory,
		notifier: notifier,
		clock:    clk,
		logger: logger.With(logging.Args(
			logging.String("component", "runtime"),
			logging.String("channel", ch.Name),
		)...),
		opts:    opts,
		hub:     NewStreamHub(opts.HubCapacity),
		state:   StateIdle,
		mode:    ModeNormal,
		viewers: make(map[string]struct{}),
	}
}

// Channel returns the managed channel.
func (m *ChannelManager) Channel() *broadcast.Channel { return m.channel }

// Hub returns the channel's segment hub.
func (m *ChannelManager) Hub() *StreamHub { return m.hub }

// TuneIn registers a viewer, starting the producer when the channel is
// idle. Concurrent tune-ins on an idle channel start exactly one
// producer: the first caller starts it, the rest wait on the same
// attempt and share its outcome.
func (m *ChannelManager) TuneIn(ctx context.Context) (string, *StreamHub, error) {
	for {
		m.mu.Lock()
		switch {
		case m.state == StateLive:
			id := uuid.NewString()
			m.viewers[id] = struct{}{}
			count := len(m.viewers)
			m.mu.Unlock()
			m.logger.Info("viewer tuned in", logging.Args(
				logging.String("viewer", id),
				logging.Int("viewers", count),
			)...)
			return id, m.hub, nil

		case m.starting != nil:
			wait := m.starting
			m.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
			m.mu.Lock()
			if m.state != StateLive && m.starting == nil && m.stopping == nil {
				err := m.startErr
				m.mu.Unlock()
				if err == nil {
					err = errors.New("channel start did not complete")
				}
				return "", nil, err
			}
			m.mu.Unlock()

		case m.stopping != nil:
			// A teardown is in flight; wait it out so exactly one producer
			// exists at a time, then retry from Idle.
			wait := m.stopping
			m.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}

		default:
			now := m.clock.Now()
			if now.Before(m.nextStartAllowed) {
				err := m.startErr
				m.mu.Unlock()
				if err == nil {
					err = errors.New("channel start backed off")
				}
				return "", nil, err
			}
			done := make(chan struct{})
			m.starting = done
			m.state = StateStarting
			m.generation++
			gen := m.generation
			mode := m.mode
			forceFallback := m.degraded
			m.mu.Unlock()

			producer, effective, err := m.startProducer(ctx, mode, forceFallback)

			m.mu.Lock()
			m.starting = nil
			close(done)
			if err != nil {
				m.state = StateIdle
				m.startErr = err
				m.lastError = err.Error()
				m.nextStartAllowed = m.clock.Now().Add(m.opts.RestartBackoff)
				m.mu.Unlock()
				m.logger.Error("producer start failed", logging.Error(err))
				_ = m.notifier.NotifyProducerStartFailure(ctx, m.channel.Name, err)
				return "", nil, err
			}
			m.producer = producer
			m.state = StateLive
			m.effectiveMode = effective
			m.startErr = nil
			m.lastError = ""
			id := uuid.NewString()
			m.viewers[id] = struct{}{}
			m.mu.Unlock()

			go m.watch(producer, gen)
			m.logger.Info("channel live", logging.Args(
				logging.String("mode", string(effective)),
				logging.String("viewer", id),
			)...)
			return id, m.hub, nil
		}
	}
}

// TuneOut removes a viewer. Unknown or already-removed ids are a no-op.
// The last viewer leaving tears the producer down.
func (m *ChannelManager) TuneOut(ctx context.Context, viewerID string) error {
	m.mu.Lock()
	if _, ok := m.viewers[viewerID]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.viewers, viewerID)
	remaining := len(m.viewers)
	if remaining > 0 || m.state != StateLive {
		m.mu.Unlock()
		m.logger.Info("viewer tuned out", logging.Args(
			logging.String("viewer", viewerID),
			logging.Int("viewers", remaining),
		)...)
		return nil
	}
	producer := m.producer
	m.producer = nil
	m.state = StateStopping
	m.generation++
	gen := m.generation
	done := make(chan struct{})
	m.stopping = done
	m.mu.Unlock()

	m.logger.Info("last viewer left, stopping producer")
	err := m.stopProducer(ctx, producer)

	m.mu.Lock()
	if m.stopping == done {
		m.stopping = nil
	}
	close(done)
	if m.generation == gen {
		m.state = StateIdle
	}
	m.mu.Unlock()
	return err
}

// SetMode switches the channel to a new producer mode. Viewers stay
// attached to the hub across the swap. Setting a mode clears the
// degraded flag: it is an operator intervention.
func (m *ChannelManager) SetMode(ctx context.Context, mode Mode) error {
	m.mu.Lock()
	m.degraded = false
	if m.mode == mode && m.effectiveMode == mode && m.state == StateLive {
		m.mu.Unlock()
		return nil
	}
	m.mode = mode
	if m.state != StateLive {
		// Applies at the next start.
		m.mu.Unlock()
		return nil
	}
	old := m.producer
	m.producer = nil
	m.generation++
	gen := m.generation
	done := make(chan struct{})
	m.starting = done
	m.state = StateStarting
	m.mu.Unlock()

	if err := m.stopProducer(ctx, old); err != nil {
		m.logger.Warn("old producer stop failed during mode change", logging.Error(err))
	}

	producer, effective, err := m.startProducer(ctx, mode, false)

	m.mu.Lock()
	m.starting = nil
	close(done)
	if err != nil {
		m.state = StateIdle
		m.startErr = err
		m.lastError = err.Error()
		m.nextStartAllowed = m.clock.Now().Add(m.opts.RestartBackoff)
		m.mu.Unlock()
		_ = m.notifier.NotifyProducerStartFailure(ctx, m.channel.Name, err)
		return err
	}
	if len(m.viewers) == 0 {
		// The last viewer tuned out while the swap was in flight; the new
		// mode still applies at the next start.
		m.state = StateIdle
		m.generation++
		m.startErr = nil
		m.lastError = ""
		m.mu.Unlock()
		_ = m.stopProducer(ctx, producer)
		m.logger.Info("mode changed with no viewers left, channel idle",
			logging.String("mode", string(mode)))
		return nil
	}
	m.producer = producer
	m.state = StateLive
	m.effectiveMode = effective
	m.startErr = nil
	m.lastError = ""
	m.mu.Unlock()

	go m.watch(producer, gen)
	m.logger.Info("mode changed", logging.String("mode", string(mode)))
	_ = m.notifier.NotifyModeChange(ctx, m.channel.Name, string(mode))
	return nil
}

// Shutdown stops any running producer regardless of viewer count.
func (m *ChannelManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	producer := m.producer
	m.producer = nil
	m.generation++
	gen := m.generation
	m.state = StateStopping
	m.viewers = make(map[string]struct{})
	done := make(chan struct{})
	m.stopping = done
	m.mu.Unlock()

	err := m.stopProducer(ctx, producer)

	m.mu.Lock()
	if m.stopping == done {
		m.stopping = nil
	}
	close(done)
	if m.generation == gen {
		m.state = StateIdle
	}
	m.mu.Unlock()
	return err
}

// Health reports the channel's current runtime condition.
func (m *ChannelManager) Health() ChannelHealth {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return ChannelHealth{
		ChannelID:     m.channel.ID,
		Channel:       m.channel.Name,
		State:         m.state,
		Mode:          m.mode,
		EffectiveMode: m.effectiveMode,
		Degraded:      m.degraded,
		Viewers:       len(m.viewers),
		RecentCrashes: len(m.pruneCrashesLocked(now)),
		LastError:     m.lastError,
		LastSequence:  m.hub.LastSequence(),
		CheckedAt:     now,
	}
}

// startProducer builds the plan, constructs a producer, and starts it
// under the start timeout. A channel with nothing scheduled gets the
// configured fallback producer instead of an error.
func (m *ChannelManager) startProducer(ctx context.Context, mode Mode, forceFallback bool) (Producer, Mode, error) {
	plan := Plan{
		ChannelID:   m.channel.ID,
		ChannelName: m.channel.Name,
		Mode:        mode,
	}
	if forceFallback && mode == ModeNormal {
		mode = m.fallbackMode()
		plan.Mode = mode
	}
	if mode == ModeNormal {
		entries, err := m.buildPlan(ctx)
		switch {
		case errors.Is(err, scheduler.ErrNotScheduled):
			mode = m.fallbackMode()
			plan.Mode = mode
			m.logger.Warn("nothing scheduled, starting fallback producer",
				logging.String("fallback", string(mode)))
		case err != nil:
			return nil, mode, &ProducerStartFailureError{Channel: m.channel.Name, Cause: err}
		default:
			plan.Entries = entries
		}
	}

	producer := m.factory(mode, m.hub, m.logger)
	startCtx, cancel := context.WithTimeout(ctx, m.opts.StartTimeout)
	defer cancel()
	if err := producer.Start(startCtx, plan); err != nil {
		return nil, mode, &ProducerStartFailureError{Channel: m.channel.Name, Cause: err}
	}
	return producer, mode, nil
}

// buildPlan assembles the producer's forward window: the event playing
// now with its mid-asset offset, plus everything scheduled inside the
// plan window.
func (m *ChannelManager) buildPlan(ctx context.Context) ([]PlanEntry, error) {
	now := m.clock.Now()
	current, offset, err := m.schedule.GetCurrent(ctx, m.channel.ID, now)
	if err != nil {
		return nil, err
	}
	events, err := m.schedule.UpcomingEvents(ctx, m.channel.ID, now, now.Add(m.opts.PlanWindow))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		events = []*broadcast.PlaylogEvent{current}
	}

	entries := make([]PlanEntry, 0, len(events))
	for _, ev := range events {
		asset, err := m.assets.GetAsset(ctx, ev.AssetID)
		if err != nil {
			return nil, fmt.Errorf("resolve asset %d: %w", ev.AssetID, err)
		}
		entry := PlanEntry{
			CorrelationID: ev.CorrelationID,
			AssetID:       ev.AssetID,
			FileRef:       asset.FileRef,
			Title:         asset.Title,
			Start:         ev.Start,
			Duration:      ev.Duration(),
			Filler:        ev.Filler,
		}
		if ev.ID == current.ID {
			entry.Offset = offset
			entry.Duration = ev.Duration() - offset
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *ChannelManager) stopProducer(ctx context.Context, producer Producer) error {
	if producer == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, m.opts.StopTimeout)
	defer cancel()
	if err := producer.Stop(stopCtx); err != nil && !errors.Is(err, ErrProducerStopped) {
		return fmt.Errorf("stop producer for channel %q: %w", m.channel.Name, err)
	}
	return nil
}

// watch waits for the producer to exit. An exit while the manager still
// considers it current is a crash: restart after backoff, escalating to
// the fallback producer when crashes cluster inside the crash window.
func (m *ChannelManager) watch(producer Producer, generation uint64) {
	<-producer.Done()
	cause := producer.Err()
	if cause == nil {
		cause = errors.New("producer exited unexpectedly")
	}

	m.mu.Lock()
	if generation != m.generation || m.state != StateLive {
		// Deliberate stop or swap already superseded this producer.
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	m.crashTimes = append(m.pruneCrashesLocked(now), now)
	crashes := len(m.crashTimes)
	escalate := crashes >= m.opts.MaxRapidCrashes
	if escalate {
		m.degraded = true
	}
	m.lastError = cause.Error()
	m.producer = nil
	m.generation++
	gen := m.generation
	done := make(chan struct{})
	m.starting = done
	m.state = StateStarting
	mode := m.mode
	m.mu.Unlock()

	ctx := context.Background()
	m.logger.Error("producer crashed", logging.Args(
		logging.Error(cause),
		logging.Int("recent_crashes", crashes),
	)...)
	_ = m.notifier.NotifyProducerCrash(ctx, m.channel.Name, crashes, cause)

	if escalate {
		m.logger.Error("crash limit reached, degrading to fallback",
			logging.String("fallback", string(m.fallbackMode())))
		_ = m.notifier.NotifyChannelDegraded(ctx, m.channel.Name, string(m.fallbackMode()))
	} else {
		time.Sleep(m.opts.RestartBackoff)
	}

	replacement, effective, err := m.startProducer(ctx, mode, escalate)

	m.mu.Lock()
	m.starting = nil
	close(done)
	if err != nil {
		m.state = StateIdle
		m.startErr = err
		m.lastError = err.Error()
		m.nextStartAllowed = m.clock.Now().Add(m.opts.RestartBackoff)
		m.mu.Unlock()
		m.logger.Error("producer restart failed", logging.Error(err))
		_ = m.notifier.NotifyProducerStartFailure(ctx, m.channel.Name, err)
		return
	}
	if len(m.viewers) == 0 {
		// Everyone left during the restart; do not keep producing.
		m.producer = nil
		m.state = StateIdle
		m.generation++
		m.mu.Unlock()
		_ = m.stopProducer(ctx, replacement)
		return
	}
	m.producer = replacement
	m.state = StateLive
	m.effectiveMode = effective
	m.mu.Unlock()

	go m.watch(replacement, gen)
	m.logger.Info("producer restarted", logging.String("mode", string(effective)))
}

func (m *ChannelManager) fallbackMode() Mode {
	if m.opts.FallbackMode == config.FallbackSlate {
		return ModeEmergency
	}
	return ModeGuide
}

// pruneCrashesLocked drops crash timestamps older than the crash window.
// Callers hold m.mu.
func (m *ChannelManager) pruneCrashesLocked(now time.Time) []time.Time {
	cutoff := now.Add(-m.opts.CrashWindow)
	kept := m.crashTimes[:0]
	for _, t := range m.crashTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.crashTimes = kept
	return kept
}
