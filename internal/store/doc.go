// Package store persists the broadcast data model in SQLite and exposes
// the queries scheduling and runtime depend on.
//
// The Store manages database connections, schema migrations, operator CRUD
// for channels, templates, blocks, schedule-day assignments, and catalog
// assets, plus the playlog: append-only, single-writer-per-channel event
// rows whose contiguous tiling is enforced at write time. Playlog rows are
// retained permanently as the as-run-adjacent historical record; only
// deliberate forward re-planning removes them.
//
// Treat this package as the single source of truth for persistence
// semantics; schema changes get a new file under migrations/.
package store
