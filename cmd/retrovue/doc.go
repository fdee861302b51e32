// Package main hosts the RetroVue CLI entrypoint and command graph.
//
// The Cobra-based command tree covers two kinds of work: station
// configuration (channels, templates, assignments, assets) written
// straight to the broadcast store, and daemon control (status, health,
// mode takeovers, horizon extension) sent over IPC to retrovued. It
// centralizes configuration resolution and socket discovery so
// subcommands can focus on user experience instead of wiring.
package main
