package broadcast

import (
	"fmt"
	"strings"
)

// OrderPolicy names the ranking policy a block requests for ordering
// eligible assets. The scheduler maps policy names to concrete rankers.
type OrderPolicy string

const (
	// OrderLeastRecent prefers the asset aired longest ago on the channel.
	OrderLeastRecent OrderPolicy = "least_recent"
	// OrderByID always plays eligible assets in ascending id order.
	OrderByID OrderPolicy = "by_id"
)

// BlockRule is the structured content-selection criteria of a template
// block: tag requirements and duration bounds in milliseconds. A zero
// bound means unconstrained.
type BlockRule struct {
	TagsRequired  []string    `json:"tags_required,omitempty"`
	TagsExcluded  []string    `json:"tags_excluded,omitempty"`
	MinDurationMS int64       `json:"min_duration_ms,omitempty"`
	MaxDurationMS int64       `json:"max_duration_ms,omitempty"`
	Order         OrderPolicy `json:"order,omitempty"`
}

// Validate checks rule invariants.
func (r BlockRule) Validate() error {
	if r.MinDurationMS < 0 || r.MaxDurationMS < 0 {
		return fmt.Errorf("rule duration bounds must be non-negative (min=%d max=%d)", r.MinDurationMS, r.MaxDurationMS)
	}
	if r.MinDurationMS > 0 && r.MaxDurationMS > 0 && r.MinDurationMS > r.MaxDurationMS {
		return fmt.Errorf("rule min duration %d exceeds max %d", r.MinDurationMS, r.MaxDurationMS)
	}
	switch r.Order {
	case "", OrderLeastRecent, OrderByID:
	default:
		return fmt.Errorf("unknown order policy %q", r.Order)
	}
	for _, tag := range append(append([]string(nil), r.TagsRequired...), r.TagsExcluded...) {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("rule contains an empty tag")
		}
	}
	return nil
}

// Matches reports whether the asset satisfies the rule. Canonical status is
// checked by the catalog source, not here.
func (r BlockRule) Matches(asset *CatalogAsset) bool {
	for _, tag := range r.TagsRequired {
		if !asset.HasTag(tag) {
			return false
		}
	}
	for _, tag := range r.TagsExcluded {
		if asset.HasTag(tag) {
			return false
		}
	}
	if r.MinDurationMS > 0 && asset.DurationMS < r.MinDurationMS {
		return false
	}
	if r.MaxDurationMS > 0 && asset.DurationMS > r.MaxDurationMS {
		return false
	}
	return true
}

// Summary renders a short human label for guide display, derived from the
// first required tag.
func (r BlockRule) Summary() string {
	if len(r.TagsRequired) > 0 {
		return r.TagsRequired[0]
	}
	return "any"
}
