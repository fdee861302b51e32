package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"retrovue/internal/broadcast"
)

// AssignTemplate binds a template to a channel for one broadcast date,
// replacing any existing assignment for that date. At most one template
// per channel per broadcast day.
func (s *Store) AssignTemplate(ctx context.Context, channelID, templateID int64, date string) (*broadcast.ScheduleDay, error) {
	day := &broadcast.ScheduleDay{
		ChannelID:    channelID,
		TemplateID:   templateID,
		ScheduleDate: date,
	}
	if err := day.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_days (channel_id, template_id, schedule_date, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(channel_id, schedule_date) DO UPDATE SET template_id = excluded.template_id`,
		channelID, templateID, date, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("assign template: %w", err)
	}
	return s.GetScheduleDay(ctx, channelID, date)
}

// GetScheduleDay fetches the assignment for (channel, broadcast date).
func (s *Store) GetScheduleDay(ctx context.Context, channelID int64, date string) (*broadcast.ScheduleDay, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel_id, template_id, schedule_date, created_at
         FROM schedule_days WHERE channel_id = ? AND schedule_date = ?`,
		channelID, date)
	return scanScheduleDay(row)
}

// ListScheduleDays returns a channel's assignments ordered by date.
func (s *Store) ListScheduleDays(ctx context.Context, channelID int64) ([]*broadcast.ScheduleDay, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, template_id, schedule_date, created_at
         FROM schedule_days WHERE channel_id = ? ORDER BY schedule_date`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list schedule days: %w", err)
	}
	defer rows.Close()

	var days []*broadcast.ScheduleDay
	for rows.Next() {
		day, err := scanScheduleDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// RemoveScheduleDay deletes an assignment. Forward playlog events already
// generated from it are untouched; use Replan to regenerate.
func (s *Store) RemoveScheduleDay(ctx context.Context, channelID int64, date string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM schedule_days WHERE channel_id = ? AND schedule_date = ?",
		channelID, date)
	if err != nil {
		return fmt.Errorf("remove schedule day: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove schedule day rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("schedule day %d/%s: %w", channelID, date, ErrNotFound)
	}
	return nil
}

func scanScheduleDay(row rowScanner) (*broadcast.ScheduleDay, error) {
	var (
		day       broadcast.ScheduleDay
		createdAt string
	)
	err := row.Scan(&day.ID, &day.ChannelID, &day.TemplateID, &day.ScheduleDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule day: %w", err)
	}
	if day.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &day, nil
}
