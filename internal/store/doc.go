// Package store persists optimizer runs in SQLite.
//
// The store records:
//   - Units: one row per optimized compilation unit, keyed by a UUIDv7
//   - Pass runs: every pass invocation of a unit with its actions and time
//   - Plans: listings of a unit at named stages, zstd-compressed
//
// # Ordering
//
// Units carry a logical sequence number assigned on insert; pass runs are
// numbered within their unit. Queries order by these numbers, never by
// wall time, so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
