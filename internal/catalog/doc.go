// Package catalog defines the read-only boundary to the library domain:
// listing canonical, schedulable assets by tag and duration constraints.
//
// The scheduler depends on the Source interface only. Production wiring
// uses the SQLite store's implementation; tests use Memory.
package catalog
