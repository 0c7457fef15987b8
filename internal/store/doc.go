// Package store provides SQLite-backed persistence for attendance sessions
// and employee profiles.
//
// Session rows are keyed by (user_id, date); each session owns its ordered
// activity records. Activities are append-only: an update inserts new
// records by ID and never rewrites existing ones.
//
// Every committed write is published as a model.ChangeEvent to the
// configured Publisher, so reconcilers on other devices observe it. Writing
// a session also refreshes the owner's profile status, which is published
// on the profiles topic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as Unix milliseconds and durations as milliseconds.
package store
