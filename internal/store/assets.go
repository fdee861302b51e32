package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retrovue/internal/broadcast"
	"retrovue/internal/catalog"
)

// AddAsset validates and inserts a catalog asset.
func (s *Store) AddAsset(ctx context.Context, a *broadcast.CatalogAsset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("encode asset tags: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_assets (title, duration_ms, tags, file_ref, canonical, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		a.Title, a.DurationMS, string(tagsJSON), a.FileRef, boolToInt(a.Canonical), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("asset insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return nil
}

// GetAsset fetches an asset by id.
func (s *Store) GetAsset(ctx context.Context, id int64) (*broadcast.CatalogAsset, error) {
	row := s.db.QueryRowContext(ctx, selectAsset+" WHERE id = ?", id)
	return scanAsset(row)
}

// ListAssets returns every asset ordered by id.
func (s *Store) ListAssets(ctx context.Context) ([]*broadcast.CatalogAsset, error) {
	rows, err := s.db.QueryContext(ctx, selectAsset+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*broadcast.CatalogAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// ListCanonicalAssets implements catalog.Source. Duration bounds are pushed
// into SQL; tag filtering happens here because tags are stored as a JSON
// array. Results come back in ascending id order for determinism.
func (s *Store) ListCanonicalAssets(ctx context.Context, filter catalog.Filter) ([]broadcast.CatalogAsset, error) {
	query := selectAsset + " WHERE canonical = 1"
	args := make([]any, 0, 2)
	if filter.MinDurationMS > 0 {
		query += " AND duration_ms >= ?"
		args = append(args, filter.MinDurationMS)
	}
	if filter.MaxDurationMS > 0 {
		query += " AND duration_ms <= ?"
		args = append(args, filter.MaxDurationMS)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list canonical assets: %w", err)
	}
	defer rows.Close()

	var assets []broadcast.CatalogAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		if filter.Matches(a) {
			assets = append(assets, *a)
		}
	}
	return assets, rows.Err()
}

const selectAsset = `SELECT id, title, duration_ms, tags, file_ref, canonical, created_at
    FROM catalog_assets`

func scanAsset(row rowScanner) (*broadcast.CatalogAsset, error) {
	var (
		a         broadcast.CatalogAsset
		tagsJSON  string
		canonical int
		createdAt string
	)
	err := row.Scan(&a.ID, &a.Title, &a.DurationMS, &tagsJSON, &a.FileRef, &canonical, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	a.Canonical = canonical != 0
	if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
		return nil, fmt.Errorf("decode asset %d tags: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}
