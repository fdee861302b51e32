// Package scheduler resolves template rules into concrete playlog events
// and maintains each channel's rolling horizons: at least two hours of
// second-accurate playlog and at least two days of guide coverage ahead
// of the current instant. Selection is deterministic for a given store
// state, so two schedulers over the same data produce the same playlog.
package scheduler
