// Package ipc exposes daemon control over JSON-RPC on a Unix domain
// socket: status, channel health, mode takeovers, on-demand horizon
// extension, and shutdown.
package ipc
