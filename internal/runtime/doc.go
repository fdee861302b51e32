// Package runtime owns channel playout: producer processes, the
// per-channel segment hub viewers consume from, the channel lifecycle
// state machine, and the program director that coordinates station-wide
// mode changes. The scheduler decides what airs; this package makes it
// air and keeps it airing through producer failures.
package runtime
