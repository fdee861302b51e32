package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retrovue/internal/broadcast"
)

// CreateTemplate validates and inserts a template.
func (s *Store) CreateTemplate(ctx context.Context, t *broadcast.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO templates (name, description, is_active, created_at) VALUES (?, ?, ?, ?)",
		t.Name, t.Description, boolToInt(t.IsActive), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("template insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	return nil
}

// GetTemplate fetches a template by id.
func (s *Store) GetTemplate(ctx context.Context, id int64) (*broadcast.Template, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, is_active, created_at FROM templates WHERE id = ?", id)
	return scanTemplate(row)
}

// GetTemplateByName fetches a template by its unique name.
func (s *Store) GetTemplateByName(ctx context.Context, name string) (*broadcast.Template, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, is_active, created_at FROM templates WHERE name = ?", name)
	return scanTemplate(row)
}

// ListTemplates returns all templates ordered by id.
func (s *Store) ListTemplates(ctx context.Context) ([]*broadcast.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, is_active, created_at FROM templates ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*broadcast.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// SetTemplateActive flips a template's active flag. Deactivation prevents
// new assignment without invalidating past schedules.
func (s *Store) SetTemplateActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE templates SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set template active rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	return nil
}

// AddBlock validates and inserts a block under its template.
func (s *Store) AddBlock(ctx context.Context, b *broadcast.TemplateBlock) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.TemplateID <= 0 {
		return errors.New("block requires a template id")
	}
	ruleJSON, err := json.Marshal(b.Rule)
	if err != nil {
		return fmt.Errorf("encode block rule: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO template_blocks (template_id, start_minutes, end_minutes, rule) VALUES (?, ?, ?, ?)",
		b.TemplateID, int(b.Start), int(b.End), string(ruleJSON),
	)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("block insert id: %w", err)
	}
	b.ID = id
	return nil
}

// DeleteBlock removes a block independently of its template.
func (s *Store) DeleteBlock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM template_blocks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete block rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("block %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListBlocks returns a template's blocks ordered by start time, then id.
func (s *Store) ListBlocks(ctx context.Context, templateID int64) ([]*broadcast.TemplateBlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, start_minutes, end_minutes, rule
         FROM template_blocks WHERE template_id = ? ORDER BY start_minutes, id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*broadcast.TemplateBlock
	for rows.Next() {
		var (
			b        broadcast.TemplateBlock
			start    int
			end      int
			ruleJSON string
		)
		if err := rows.Scan(&b.ID, &b.TemplateID, &start, &end, &ruleJSON); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		b.Start = broadcast.ClockTime(start)
		b.End = broadcast.ClockTime(end)
		if err := json.Unmarshal([]byte(ruleJSON), &b.Rule); err != nil {
			return nil, fmt.Errorf("decode block %d rule: %w", b.ID, err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, rows.Err()
}

func scanTemplate(row rowScanner) (*broadcast.Template, error) {
	var (
		t         broadcast.Template
		active    int
		createdAt string
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	t.IsActive = active != 0
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}
