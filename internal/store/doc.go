// Package store persists correspondences, their workflow stages, and the
// organization chart in SQLite.
//
// Open applies the embedded schema and migrations, configures WAL mode,
// foreign keys, and a busy timeout on every pooled connection, and begins
// write transactions IMMEDIATE so signing requests serialize at BEGIN rather
// than failing mid-transaction. WithTx retries a whole transaction body when
// SQLite reports SQLITE_BUSY.
//
// Status columns are only written through the conditional transition helpers
// in stages.go and correspondences.go, which validate each move against the
// lifecycle package and require the row to still hold the expected prior
// status. A lost race surfaces as ErrStaleState rather than a double advance.
package store
