package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"retrovue/internal/broadcast"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CreateChannel validates and inserts a channel, assigning its id and
// timestamps.
func (s *Store) CreateChannel(ctx context.Context, ch *broadcast.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (
            name, timezone, grid_size_minutes, grid_offset_minutes,
            rollover_minutes, is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.Name, ch.Timezone, ch.GridSizeMinutes, ch.GridOffsetMinutes,
		ch.RolloverMinutes, boolToInt(ch.IsActive), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("channel insert id: %w", err)
	}
	ch.ID = id
	ch.CreatedAt = now
	ch.UpdatedAt = now
	return nil
}

// UpdateChannel persists changes to an existing channel's timing policy.
func (s *Store) UpdateChannel(ctx context.Context, ch *broadcast.Channel) error {
	if ch.ID <= 0 {
		return errors.New("update channel: id not set")
	}
	if err := ch.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET
            name = ?, timezone = ?, grid_size_minutes = ?, grid_offset_minutes = ?,
            rollover_minutes = ?, is_active = ?, updated_at = ?
         WHERE id = ?`,
		ch.Name, ch.Timezone, ch.GridSizeMinutes, ch.GridOffsetMinutes,
		ch.RolloverMinutes, boolToInt(ch.IsActive), formatTime(now), ch.ID,
	)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update channel rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update channel %d: %w", ch.ID, ErrNotFound)
	}
	ch.UpdatedAt = now
	return nil
}

// SetChannelActive flips a channel's active flag. Deactivation removes the
// channel from scheduling and routing without touching its history.
func (s *Store) SetChannelActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE channels SET is_active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("set channel active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set channel active rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetChannel fetches a channel by id.
func (s *Store) GetChannel(ctx context.Context, id int64) (*broadcast.Channel, error) {
	row := s.db.QueryRowContext(ctx, selectChannel+" WHERE id = ?", id)
	return scanChannel(row)
}

// GetChannelByName fetches a channel by its unique name.
func (s *Store) GetChannelByName(ctx context.Context, name string) (*broadcast.Channel, error) {
	row := s.db.QueryRowContext(ctx, selectChannel+" WHERE name = ?", name)
	return scanChannel(row)
}

// ListChannels returns channels ordered by id, optionally only active ones.
func (s *Store) ListChannels(ctx context.Context, activeOnly bool) ([]*broadcast.Channel, error) {
	query := selectChannel
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []*broadcast.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

const selectChannel = `SELECT id, name, timezone, grid_size_minutes,
    grid_offset_minutes, rollover_minutes, is_active, created_at, updated_at
    FROM channels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*broadcast.Channel, error) {
	var (
		ch        broadcast.Channel
		active    int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&ch.ID, &ch.Name, &ch.Timezone, &ch.GridSizeMinutes,
		&ch.GridOffsetMinutes, &ch.RolloverMinutes, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	ch.IsActive = active != 0
	if ch.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ch.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &ch, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
