package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"retrovue/internal/broadcast"
	"retrovue/internal/catalog"
	"retrovue/internal/clock"
	"retrovue/internal/logging"
	"retrovue/internal/store"
)

const (
	defaultPlaylogHorizon = 2 * time.Hour
	defaultEPGHorizon     = 48 * time.Hour
	defaultFillerTag      = "filler"
)

// Service resolves schedule configuration into playlog events and keeps
// the rolling horizons ahead of the clock. One Service instance is the
// single playlog writer for its store; per-channel locks serialize
// extension and re-planning.
type Service struct {
	store   *store.Store
	source  catalog.Source
	clock   clock.Clock
	logger  *slog.Logger
	ranker  Ranker
	playlog time.Duration
	epg     time.Duration
	filler  string

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Option adjusts Service construction.
type Option func(*Service)

// WithPlaylogHorizon overrides how far ahead the playlog is kept filled.
func WithPlaylogHorizon(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.playlog = d
		}
	}
}

// WithEPGHorizon overrides how far ahead guide coverage is verified.
func WithEPGHorizon(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.epg = d
		}
	}
}

// WithRanker overrides the default rotation policy applied when a block
// rule does not name one.
func WithRanker(r Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithFillerTag overrides the tag that marks interstitial filler content.
func WithFillerTag(tag string) Option {
	return func(s *Service) {
		if tag != "" {
			s.filler = tag
		}
	}
}

// New constructs a Service over the given store and catalog source.
func New(st *store.Store, source catalog.Source, clk clock.Clock, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:   st,
		source:  source,
		clock:   clk,
		logger:  logger.With(logging.String("component", "scheduler")),
		ranker:  LeastRecentlyAired{},
		playlog: defaultPlaylogHorizon,
		epg:     defaultEPGHorizon,
		filler:  defaultFillerTag,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) channelLock(channelID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[int64]*sync.Mutex)
	}
	lock, ok := s.locks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[channelID] = lock
	}
	return lock
}

// ExtendHorizons tops up the channel's playlog to now+playlog horizon and
// verifies guide coverage through now+EPG horizon. It is idempotent:
// calling it twice in a row extends nothing the second time and never
// rewrites existing events. A configuration gap stops the fill at the
// gap; events appended before the gap are kept.
func (s *Service) ExtendHorizons(ctx context.Context, ch *broadcast.Channel) error {
	lock := s.channelLock(ch.ID)
	lock.Lock()
	defer lock.Unlock()

	now := s.clock.Now()
	if err := s.extendPlaylog(ctx, ch, now); err != nil {
		return err
	}
	return s.checkGuideCoverage(ctx, ch, now)
}

// Replan discards the channel's events from the given instant forward and
// refills the playlog horizon. History before the cut is untouched.
func (s *Service) Replan(ctx context.Context, ch *broadcast.Channel, from time.Time) error {
	lock := s.channelLock(ch.ID)
	lock.Lock()
	defer lock.Unlock()

	removed, err := s.store.DeleteEventsFrom(ctx, ch.ID, from)
	if err != nil {
		return fmt.Errorf("replan channel %q: %w", ch.Name, err)
	}
	s.logger.Info("replanning channel", logging.Args(
		logging.String("channel", ch.Name),
		logging.Time("from", from),
		logging.Int64("events_removed", removed),
	)...)
	return s.extendPlaylog(ctx, ch, s.clock.Now())
}

// GetCurrent returns the event covering the given instant together with
// the elapsed offset into it, or ErrNotScheduled when no event covers it.
func (s *Service) GetCurrent(ctx context.Context, channelID int64, at time.Time) (*broadcast.PlaylogEvent, time.Duration, error) {
	ev, err := s.store.EventAt(ctx, channelID, at)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, fmt.Errorf("channel %d at %s: %w",
			channelID, at.UTC().Format(time.RFC3339), ErrNotScheduled)
	}
	if err != nil {
		return nil, 0, err
	}
	return ev, at.Sub(ev.Start), nil
}

// UpcomingEvents returns the channel's events overlapping [from, until),
// in start order. Runtime uses this to hand producers a forward plan.
func (s *Service) UpcomingEvents(ctx context.Context, channelID int64, from, until time.Time) ([]*broadcast.PlaylogEvent, error) {
	return s.store.EventsBetween(ctx, channelID, from, until)
}

// extendPlaylog appends events until the channel's playlog reaches
// now+playlog horizon. The fill cursor resumes at the existing tail; a
// tail in the past (daemon downtime) restarts at the grid slot covering
// now, leaving the off-air span unscheduled.
func (s *Service) extendPlaylog(ctx context.Context, ch *broadcast.Channel, now time.Time) error {
	target := now.Add(s.playlog)

	cursor, err := s.fillCursor(ctx, ch, now)
	if err != nil {
		return err
	}

	appended := 0
	for cursor.Before(target) {
		ev, err := s.nextEvent(ctx, ch, cursor)
		if err != nil {
			if appended > 0 {
				s.logger.Info("playlog extended before gap", logging.Args(
					logging.String("channel", ch.Name),
					logging.Int("events", appended),
					logging.Time("through", cursor),
				)...)
			}
			return err
		}
		if err := s.store.AppendEvent(ctx, ev); err != nil {
			return err
		}
		cursor = ev.End
		appended++
	}

	if appended > 0 {
		s.logger.Info("playlog extended", logging.Args(
			logging.String("channel", ch.Name),
			logging.Int("events", appended),
			logging.Time("through", cursor),
		)...)
	}
	return nil
}

func (s *Service) fillCursor(ctx context.Context, ch *broadcast.Channel, now time.Time) (time.Time, error) {
	tail, ok, err := s.store.MaxEnd(ctx, ch.ID)
	if err != nil {
		return time.Time{}, err
	}
	aligned, err := ch.GridAlign(now)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return aligned, nil
	}
	if tail.Before(aligned) {
		s.logger.Warn("playlog tail is stale, restarting at current grid slot", logging.Args(
			logging.String("channel", ch.Name),
			logging.Time("tail", tail),
			logging.Time("restart", aligned),
		)...)
		return aligned, nil
	}
	return tail, nil
}

// nextEvent resolves the single event that starts at the cursor: locate
// the broadcast day's template, pick the governing block, rank the
// eligible assets, and take the first that fits the remaining block
// window. When nothing fits, filler pads exactly to the block boundary.
func (s *Service) nextEvent(ctx context.Context, ch *broadcast.Channel, cursor time.Time) (*broadcast.PlaylogEvent, error) {
	day, err := ch.BroadcastDay(cursor)
	if err != nil {
		return nil, err
	}

	assignment, err := s.store.GetScheduleDay(ctx, ch.ID, day)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ConfigurationGapError{
			ChannelID:    ch.ID,
			Channel:      ch.Name,
			BroadcastDay: day,
			Reason:       "no template assigned",
		}
	}
	if err != nil {
		return nil, err
	}

	blocks, err := s.store.ListBlocks(ctx, assignment.TemplateID)
	if err != nil {
		return nil, err
	}
	wall, err := ch.WallMinute(cursor)
	if err != nil {
		return nil, err
	}
	block := resolveBlock(blocks, wall)
	if block == nil {
		return nil, &ConfigurationGapError{
			ChannelID:    ch.ID,
			Channel:      ch.Name,
			BroadcastDay: day,
			Reason:       fmt.Sprintf("no block covers %s", broadcast.ClockTime(wall)),
		}
	}

	blockEnd, err := ch.NextWallInstant(cursor, block.End%broadcast.MinutesPerDay)
	if err != nil {
		return nil, err
	}
	remaining := blockEnd.Sub(cursor)

	candidates, err := s.candidates(ctx, ch.ID, catalog.FromRule(block.Rule))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &ConfigurationGapError{
			ChannelID:    ch.ID,
			Channel:      ch.Name,
			BroadcastDay: day,
			Reason:       fmt.Sprintf("no canonical asset matches block %s-%s rule [%s]", block.Start, block.End, block.Rule.Summary()),
		}
	}

	ranked := rankerFor(block.Rule.Order, s.ranker).Rank(candidates)
	for _, c := range ranked {
		if c.Asset.Duration() <= remaining {
			return s.buildEvent(ch, &c.Asset, cursor, cursor.Add(c.Asset.Duration()), day, false), nil
		}
	}

	// Nothing fits the residual window; pad it with filler truncated to
	// the block boundary so the next block starts on time.
	return s.fillerEvent(ctx, ch, cursor, blockEnd, day, block)
}

func (s *Service) fillerEvent(ctx context.Context, ch *broadcast.Channel, start, end time.Time, day string, block *broadcast.TemplateBlock) (*broadcast.PlaylogEvent, error) {
	candidates, err := s.candidates(ctx, ch.ID, catalog.Filter{TagsRequired: []string{s.filler}})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, &ConfigurationGapError{
			ChannelID:    ch.ID,
			Channel:      ch.Name,
			BroadcastDay: day,
			Reason:       fmt.Sprintf("no %q asset available to pad block %s-%s", s.filler, block.Start, block.End),
		}
	}
	ranked := s.ranker.Rank(candidates)
	return s.buildEvent(ch, &ranked[0].Asset, start, end, day, true), nil
}

func (s *Service) buildEvent(ch *broadcast.Channel, asset *broadcast.CatalogAsset, start, end time.Time, day string, filler bool) *broadcast.PlaylogEvent {
	return &broadcast.PlaylogEvent{
		CorrelationID: uuid.NewString(),
		ChannelID:     ch.ID,
		AssetID:       asset.ID,
		Start:         start,
		End:           end,
		BroadcastDay:  day,
		Filler:        filler,
	}
}

func (s *Service) candidates(ctx context.Context, channelID int64, filter catalog.Filter) ([]Candidate, error) {
	assets, err := s.source.ListCanonicalAssets(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, nil
	}
	lastAired, err := s.store.LastAirTimes(ctx, channelID)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(assets))
	for _, asset := range assets {
		out = append(out, Candidate{Asset: asset, LastAired: lastAired[asset.ID]})
	}
	return out, nil
}

// resolveBlock picks the block governing a wall-clock minute. When
// windows overlap, the most specific wins: smallest window first, then
// lowest id.
func resolveBlock(blocks []*broadcast.TemplateBlock, wallMinute int) *broadcast.TemplateBlock {
	var best *broadcast.TemplateBlock
	for _, b := range blocks {
		if !b.Covers(wallMinute) {
			continue
		}
		if best == nil ||
			b.WindowMinutes() < best.WindowMinutes() ||
			(b.WindowMinutes() == best.WindowMinutes() && b.ID < best.ID) {
			best = b
		}
	}
	return best
}

// checkGuideCoverage verifies every broadcast day in the EPG horizon has
// a template assignment with at least one block. The first uncovered day
// is reported as a configuration gap.
func (s *Service) checkGuideCoverage(ctx context.Context, ch *broadcast.Channel, now time.Time) error {
	day, err := ch.BroadcastDay(now)
	if err != nil {
		return err
	}
	lastDay, err := ch.BroadcastDay(now.Add(s.epg))
	if err != nil {
		return err
	}
	date, err := time.Parse(broadcast.DateLayout, day)
	if err != nil {
		return err
	}
	for {
		label := date.Format(broadcast.DateLayout)
		assignment, err := s.store.GetScheduleDay(ctx, ch.ID, label)
		if errors.Is(err, store.ErrNotFound) {
			return &ConfigurationGapError{
				ChannelID:    ch.ID,
				Channel:      ch.Name,
				BroadcastDay: label,
				Reason:       "no template assigned within guide horizon",
			}
		}
		if err != nil {
			return err
		}
		blocks, err := s.store.ListBlocks(ctx, assignment.TemplateID)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			return &ConfigurationGapError{
				ChannelID:    ch.ID,
				Channel:      ch.Name,
				BroadcastDay: label,
				Reason:       "assigned template has no blocks",
			}
		}
		if label == lastDay {
			return nil
		}
		date = date.AddDate(0, 0, 1)
	}
}
