package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"retrovue/internal/broadcast"
)

// AppendEvent appends one playlog event for its channel, enforcing the
// no-overlap half of the tiling invariant inside a transaction: the new
// event must not start before the latest event ends. Contiguity is the
// scheduler's job — it fills sequentially, each event starting at the
// prior event's end — but a start after the tail stays legal so the
// horizon can restart at the current grid slot after daemon downtime.
// Violations surface as *broadcast.InvariantViolationError and write
// nothing.
func (s *Store) AppendEvent(ctx context.Context, ev *broadcast.PlaylogEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin playlog tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastEnd string
	err = tx.QueryRowContext(ctx,
		`SELECT absolute_end FROM playlog_events
         WHERE channel_id = ? ORDER BY absolute_start DESC LIMIT 1`,
		ev.ChannelID).Scan(&lastEnd)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First event for the channel; any start is acceptable.
	case err != nil:
		return fmt.Errorf("query playlog tail: %w", err)
	default:
		tail, parseErr := parseTime(lastEnd)
		if parseErr != nil {
			return parseErr
		}
		if ev.Start.Before(tail) {
			return &broadcast.InvariantViolationError{
				Op: "playlog append",
				Detail: fmt.Sprintf("channel %d: event start %s overlaps tail %s",
					ev.ChannelID, ev.Start.UTC().Format(time.RFC3339Nano), tail.Format(time.RFC3339Nano)),
			}
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO playlog_events (
            correlation_id, channel_id, asset_id, absolute_start, absolute_end,
            broadcast_day, filler, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.CorrelationID, ev.ChannelID, ev.AssetID,
		formatTime(ev.Start), formatTime(ev.End),
		ev.BroadcastDay, boolToInt(ev.Filler), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert playlog event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("playlog insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit playlog event: %w", err)
	}
	ev.ID = id
	ev.CreatedAt = now
	return nil
}

// MaxEnd returns the latest absolute_end across a channel's events. The
// boolean reports whether the channel has any events at all.
func (s *Store) MaxEnd(ctx context.Context, channelID int64) (time.Time, bool, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(absolute_end) FROM playlog_events WHERE channel_id = ?",
		channelID).Scan(&raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query playlog max end: %w", err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// EventAt returns the event whose [start, end) interval contains the given
// instant, or ErrNotFound when no event covers it.
func (s *Store) EventAt(ctx context.Context, channelID int64, at time.Time) (*broadcast.PlaylogEvent, error) {
	row := s.db.QueryRowContext(ctx,
		selectEvent+` WHERE channel_id = ? AND absolute_start <= ? AND absolute_end > ?
         ORDER BY absolute_start DESC LIMIT 1`,
		channelID, formatTime(at), formatTime(at))
	return scanEvent(row)
}

// EventsBetween returns events overlapping [from, until), ordered by start.
func (s *Store) EventsBetween(ctx context.Context, channelID int64, from, until time.Time) ([]*broadcast.PlaylogEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEvent+` WHERE channel_id = ? AND absolute_end > ? AND absolute_start < ?
         ORDER BY absolute_start`,
		channelID, formatTime(from), formatTime(until))
	if err != nil {
		return nil, fmt.Errorf("query playlog range: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// EventsForDay returns every event labeled with the given broadcast day.
func (s *Store) EventsForDay(ctx context.Context, channelID int64, day string) ([]*broadcast.PlaylogEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		selectEvent+" WHERE channel_id = ? AND broadcast_day = ? ORDER BY absolute_start",
		channelID, day)
	if err != nil {
		return nil, fmt.Errorf("query playlog day: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// DeleteEventsFrom removes events starting at or after the given instant.
// This is the deliberate re-plan path; history before the cut stays.
func (s *Store) DeleteEventsFrom(ctx context.Context, channelID int64, from time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM playlog_events WHERE channel_id = ? AND absolute_start >= ?",
		channelID, formatTime(from))
	if err != nil {
		return 0, fmt.Errorf("delete playlog events: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete playlog rows: %w", err)
	}
	return removed, nil
}

// LastAirTimes returns, per asset, the latest absolute_start the asset was
// scheduled on the channel. Feeds the least-recently-aired ranker.
func (s *Store) LastAirTimes(ctx context.Context, channelID int64) (map[int64]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, MAX(absolute_start) FROM playlog_events
         WHERE channel_id = ? GROUP BY asset_id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query last air times: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]time.Time)
	for rows.Next() {
		var (
			assetID int64
			raw     string
		)
		if err := rows.Scan(&assetID, &raw); err != nil {
			return nil, fmt.Errorf("scan last air time: %w", err)
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		out[assetID] = t
	}
	return out, rows.Err()
}

// CountEvents returns the number of playlog events for a channel.
func (s *Store) CountEvents(ctx context.Context, channelID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM playlog_events WHERE channel_id = ?", channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count playlog events: %w", err)
	}
	return count, nil
}

const selectEvent = `SELECT id, correlation_id, channel_id, asset_id,
    absolute_start, absolute_end, broadcast_day, filler, created_at
    FROM playlog_events`

func scanEvent(row rowScanner) (*broadcast.PlaylogEvent, error) {
	var (
		ev        broadcast.PlaylogEvent
		start     string
		end       string
		filler    int
		createdAt string
	)
	err := row.Scan(&ev.ID, &ev.CorrelationID, &ev.ChannelID, &ev.AssetID,
		&start, &end, &ev.BroadcastDay, &filler, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan playlog event: %w", err)
	}
	ev.Filler = filler != 0
	if ev.Start, err = parseTime(start); err != nil {
		return nil, err
	}
	if ev.End, err = parseTime(end); err != nil {
		return nil, err
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]*broadcast.PlaylogEvent, error) {
	var events []*broadcast.PlaylogEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
