// Package store provides SQLite-backed persistence for saved connection
// profiles and query/plan history.
//
// The store is a small document store: named documents hold JSON values
// under string keys. Writes are staged on a Document and flushed by Save in
// a single transaction, so a reader never sees half of a multi-key update.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema versions are tracked in PRAGMA user_version. A database written by
// a newer release is refused rather than silently downgraded.
package store
