// Package storage is the persistence boundary for dedup-critical state:
// per-chat title subscriptions, the known-recipients set with global title
// marks (broadcast mode), and per-chat throttle marks.
//
// Every mutation is durable before the call returns (write-through); a crash
// after a successful call must never revert the mutation. Absent or
// zero-length state is treated as empty, never as an error.
package storage
