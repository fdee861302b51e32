package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"retrovue/internal/logging"
)

// Mode names a producer's output style. Normal plays the schedule;
// Emergency holds a takeover slate; Guide renders channel listings.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeEmergency Mode = "emergency"
	ModeGuide     Mode = "guide"
)

// ParseMode validates an operator-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNormal, ModeEmergency, ModeGuide:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want normal, emergency, or guide)", s)
	}
}

// PlanEntry is one scheduled item handed to a producer. Offset is nonzero
// only on the first entry, telling the producer to join the asset
// mid-flight so playout matches the wall clock.
type PlanEntry struct {
	CorrelationID string
	AssetID       int64
	FileRef       string
	Title         string
	Start         time.Time
	Duration      time.Duration
	Offset        time.Duration
	Filler        bool
}

// Plan is the forward window of work a producer starts against. Fallback
// modes receive an empty entry list and synthesize their own output.
type Plan struct {
	ChannelID   int64
	ChannelName string
	Mode        Mode
	Entries     []PlanEntry
}

// Producer is a playout process for one channel. Implementations publish
// segments to the channel hub from Start until Stop or failure. Done is
// closed when the producer exits for any reason; Err reports the failure
// cause, nil after a clean Stop.
type Producer interface {
	Start(ctx context.Context, plan Plan) error
	Stop(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
}

// ProducerFactory builds a producer for the given mode publishing into
// the channel's hub.
type ProducerFactory func(mode Mode, hub *StreamHub, logger *slog.Logger) Producer

// NewSimulatedFactory returns a factory producing in-process simulated
// producers that emit one labeled segment per interval.
func NewSimulatedFactory(interval time.Duration) ProducerFactory {
	return func(mode Mode, hub *StreamHub, logger *slog.Logger) Producer {
		return NewSimulatedProducer(mode, hub, interval, logger)
	}
}

// ErrProducerStopped reports Stop being called on a producer that never
// started or already exited.
var ErrProducerStopped = errors.New("producer not running")

var modeCaser = cases.Title(language.AmericanEnglish)

// SimulatedProducer is an in-process Producer that emits one segment per
// interval, labeled with the plan entry playing at that instant. It
// stands in for a real encoder process while exercising the full
// lifecycle contract.
type SimulatedProducer struct {
	mode     Mode
	hub      *StreamHub
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	started bool
}

// NewSimulatedProducer constructs a simulated producer for one start.
// Producers are single-use: a restart builds a fresh one.
func NewSimulatedProducer(mode Mode, hub *StreamHub, interval time.Duration, logger *slog.Logger) *SimulatedProducer {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedProducer{
		mode:     mode,
		hub:      hub,
		interval: interval,
		logger:   logger.With(logging.String("component", "producer")),
		done:     make(chan struct{}),
	}
}

// Start implements Producer.
func (p *SimulatedProducer) Start(ctx context.Context, plan Plan) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("producer already started")
	}
	p.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	if p.mode == ModeNormal && len(plan.Entries) == 0 {
		cancel()
		close(p.done)
		return errors.New("normal mode requires a non-empty plan")
	}

	go p.run(runCtx, plan)
	return nil
}

// Stop implements Producer. It cancels the emit loop and waits for exit.
func (p *SimulatedProducer) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	started := p.started
	p.mu.Unlock()
	if !started || cancel == nil {
		return ErrProducerStopped
	}
	cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done implements Producer.
func (p *SimulatedProducer) Done() <-chan struct{} { return p.done }

// Err implements Producer.
func (p *SimulatedProducer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *SimulatedProducer) run(ctx context.Context, plan Plan) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	elapsed := time.Duration(0)
	if len(plan.Entries) > 0 {
		elapsed = plan.Entries[0].Offset
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entry := currentEntry(plan, &elapsed, p.interval)
			p.hub.Publish(Segment{
				Mode:          p.mode,
				CorrelationID: correlationID(entry),
				Payload:       []byte(p.label(plan, entry)),
			})
		}
	}
}

func (p *SimulatedProducer) label(plan Plan, entry *PlanEntry) string {
	switch p.mode {
	case ModeEmergency:
		return fmt.Sprintf("%s: We'll Be Right Back", plan.ChannelName)
	case ModeGuide:
		return fmt.Sprintf("%s Guide", plan.ChannelName)
	default:
		if entry == nil {
			return fmt.Sprintf("%s: %s Standby", plan.ChannelName, modeCaser.String(string(p.mode)))
		}
		return fmt.Sprintf("%s: %s", plan.ChannelName, entry.Title)
	}
}

// currentEntry walks the plan by accumulated playout time, mirroring how
// a real producer would advance through its input list.
func currentEntry(plan Plan, elapsed *time.Duration, step time.Duration) *PlanEntry {
	defer func() { *elapsed += step }()
	at := *elapsed
	for i := range plan.Entries {
		entry := &plan.Entries[i]
		if at < entry.Duration {
			return entry
		}
		at -= entry.Duration
	}
	if n := len(plan.Entries); n > 0 {
		return &plan.Entries[n-1]
	}
	return nil
}

func correlationID(entry *PlanEntry) string {
	if entry == nil {
		return ""
	}
	return entry.CorrelationID
}
