package scheduler

import (
	"sort"
	"time"

	"retrovue/internal/broadcast"
)

// Candidate pairs an eligible asset with its channel-local airing history.
// LastAired is zero when the asset has never aired on the channel.
type Candidate struct {
	Asset     broadcast.CatalogAsset
	LastAired time.Time
}

// Ranker orders eligible candidates into selection preference. Rankers
// must be deterministic: identical inputs yield identical order, with
// asset id as the final tiebreak.
type Ranker interface {
	Name() string
	Rank(candidates []Candidate) []Candidate
}

// LeastRecentlyAired prefers the asset whose last airing on the channel
// is oldest; never-aired assets come first. Ties break on ascending
// asset id. This is the default rotation policy.
type LeastRecentlyAired struct{}

// Name implements Ranker.
func (LeastRecentlyAired) Name() string { return string(broadcast.OrderLeastRecent) }

// Rank implements Ranker.
func (LeastRecentlyAired) Rank(candidates []Candidate) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastAired.IsZero() && !b.LastAired.IsZero():
			return true
		case !a.LastAired.IsZero() && b.LastAired.IsZero():
			return false
		case !a.LastAired.Equal(b.LastAired):
			return a.LastAired.Before(b.LastAired)
		}
		return a.Asset.ID < b.Asset.ID
	})
	return out
}

// ByID plays eligible assets in ascending id order regardless of airing
// history. Useful for strict sequential marathons.
type ByID struct{}

// Name implements Ranker.
func (ByID) Name() string { return string(broadcast.OrderByID) }

// Rank implements Ranker.
func (ByID) Rank(candidates []Candidate) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Asset.ID < out[j].Asset.ID
	})
	return out
}

func rankerFor(policy broadcast.OrderPolicy, fallback Ranker) Ranker {
	switch policy {
	case broadcast.OrderByID:
		return ByID{}
	case broadcast.OrderLeastRecent:
		return LeastRecentlyAired{}
	default:
		return fallback
	}
}
