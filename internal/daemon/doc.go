// Package daemon coordinates the long-running RetroVue process.
//
// It wires configuration, the broadcast store, the scheduler, and the
// runtime director into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon owns the maintenance loop that
// keeps every active channel's playlog and guide horizons extended and
// surfaces configuration gaps to operators.
//
// Keep orchestration logic here: scheduling and playout decisions live
// in their respective packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
