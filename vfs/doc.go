// Package vfs implements the kernel's hierarchical resource tree and the
// transactional workspace sessions that mutate it. A session stages writes
// and deletes against a base path; staged mutations stay invisible outside
// the session until CommitSession applies them atomically. Sessions follow a
// strict state machine: Open -> Committed or Abandoned, both terminal.
//
// The Manager is a single shared resource guarded by a mutex. Its critical
// sections cover only in-memory bookkeeping; no I/O happens under the lock.
package vfs
