// Package broadcast defines the scheduling domain model: channels with
// their timing policy, templates and their content-selection blocks,
// per-day template assignments, catalog assets, and resolved playlog
// events.
//
// It also owns the timing math everything else leans on: broadcast-day
// rollover (a channel's programming date begins rollover_minutes past
// local midnight, not at midnight), grid alignment, and wall-clock block
// windows that may wrap past midnight within a broadcast day.
//
// Treat this package as the single source of truth for model invariants;
// the store refuses writes that fail validation here.
package broadcast
