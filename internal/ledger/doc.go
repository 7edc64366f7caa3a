// Package ledger persists which editions were delivered.
//
// The store is a SQLite database with three tables: deliveries (append-only,
// the source of truth for "already delivered"), destination_receipts
// (per-address confirmations used to resume partial deliveries) and attempts
// (per-run outcome history). Every write is a single transaction, so an
// interrupted process leaves either the full record or nothing; every failure
// is reported as services.ErrLedgerIO.
package ledger
