package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"retrovue/internal/broadcast"
	"retrovue/internal/store"
)

// GuideSlot is one grid-aligned cell of the electronic program guide.
// Slots are a derived, display-oriented snap of the playlog: the title
// comes from the event playing at the slot's start, falling back to the
// governing block's rule summary when the playlog has not been resolved
// that far ahead.
type GuideSlot struct {
	Start        time.Time
	End          time.Time
	BroadcastDay string
	Title        string
	AssetID      int64
	Filler       bool
	Resolved     bool
}

var titleCaser = cases.Title(language.AmericanEnglish)

// Guide returns the channel's next n grid slots starting from the slot
// containing `from`.
func (s *Service) Guide(ctx context.Context, ch *broadcast.Channel, from time.Time, n int) ([]GuideSlot, error) {
	start, err := ch.GridAlign(from)
	if err != nil {
		return nil, err
	}
	grid := time.Duration(ch.GridSizeMinutes) * time.Minute

	slots := make([]GuideSlot, 0, n)
	for i := 0; i < n; i++ {
		slotStart := start.Add(time.Duration(i) * grid)
		slot := GuideSlot{Start: slotStart, End: slotStart.Add(grid)}
		if slot.BroadcastDay, err = ch.BroadcastDay(slotStart); err != nil {
			return nil, err
		}
		if err := s.populateSlot(ctx, ch, &slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (s *Service) populateSlot(ctx context.Context, ch *broadcast.Channel, slot *GuideSlot) error {
	ev, err := s.store.EventAt(ctx, ch.ID, slot.Start)
	switch {
	case err == nil:
		asset, err := s.store.GetAsset(ctx, ev.AssetID)
		if err != nil {
			return err
		}
		slot.Title = asset.Title
		slot.AssetID = asset.ID
		slot.Filler = ev.Filler
		slot.Resolved = true
		return nil
	case errors.Is(err, store.ErrNotFound):
		return s.projectSlot(ctx, ch, slot)
	default:
		return err
	}
}

// projectSlot labels a slot beyond the resolved playlog from the
// template block that will govern it.
func (s *Service) projectSlot(ctx context.Context, ch *broadcast.Channel, slot *GuideSlot) error {
	assignment, err := s.store.GetScheduleDay(ctx, ch.ID, slot.BroadcastDay)
	if errors.Is(err, store.ErrNotFound) {
		slot.Title = "Off Air"
		return nil
	}
	if err != nil {
		return err
	}
	blocks, err := s.store.ListBlocks(ctx, assignment.TemplateID)
	if err != nil {
		return err
	}
	wall, err := ch.WallMinute(slot.Start)
	if err != nil {
		return err
	}
	block := resolveBlock(blocks, wall)
	if block == nil {
		slot.Title = "Off Air"
		return nil
	}
	slot.Title = titleCaser.String(block.Rule.Summary())
	return nil
}
