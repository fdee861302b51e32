package catalog

import (
	"context"
	"sort"
	"sync"

	"retrovue/internal/broadcast"
)

// Filter narrows the canonical asset listing. Zero values mean
// unconstrained. Only canonical assets are ever returned.
type Filter struct {
	TagsRequired  []string
	TagsExcluded  []string
	MinDurationMS int64
	MaxDurationMS int64
}

// Matches reports whether a canonical asset satisfies the filter.
func (f Filter) Matches(asset *broadcast.CatalogAsset) bool {
	if !asset.Canonical {
		return false
	}
	rule := broadcast.BlockRule{
		TagsRequired:  f.TagsRequired,
		TagsExcluded:  f.TagsExcluded,
		MinDurationMS: f.MinDurationMS,
		MaxDurationMS: f.MaxDurationMS,
	}
	return rule.Matches(asset)
}

// FromRule converts a block rule's selection criteria into a filter.
func FromRule(rule broadcast.BlockRule) Filter {
	return Filter{
		TagsRequired:  rule.TagsRequired,
		TagsExcluded:  rule.TagsExcluded,
		MinDurationMS: rule.MinDurationMS,
		MaxDurationMS: rule.MaxDurationMS,
	}
}

// Source lists canonical assets eligible for scheduling. Implementations
// must return results in ascending id order so selection stays
// deterministic.
type Source interface {
	ListCanonicalAssets(ctx context.Context, filter Filter) ([]broadcast.CatalogAsset, error)
}

// Memory is an in-memory Source for tests and tooling.
type Memory struct {
	mu     sync.RWMutex
	assets map[int64]broadcast.CatalogAsset
	nextID int64
}

// NewMemory constructs an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{assets: make(map[int64]broadcast.CatalogAsset)}
}

// Add stores an asset, assigning an id when unset, and returns the stored
// copy.
func (m *Memory) Add(asset broadcast.CatalogAsset) broadcast.CatalogAsset {
	m.mu.Lock()
	defer m.mu.Unlock()
	if asset.ID == 0 {
		m.nextID++
		asset.ID = m.nextID
	} else if asset.ID > m.nextID {
		m.nextID = asset.ID
	}
	m.assets[asset.ID] = asset
	return asset
}

// ListCanonicalAssets implements Source.
func (m *Memory) ListCanonicalAssets(_ context.Context, filter Filter) ([]broadcast.CatalogAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]broadcast.CatalogAsset, 0, len(m.assets))
	for _, asset := range m.assets {
		a := asset
		if filter.Matches(&a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
