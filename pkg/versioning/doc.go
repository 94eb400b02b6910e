// Package versioning publishes immutable policy snapshots and restores,
// lists and diffs them.
//
// Version numbers start at 1 and increase by one per publish. The store
// enforces the "read max, write max+1" step atomically; a lost race surfaces
// as storage.ErrVersionConflict and Publish simply tries again with a fresh
// read. Restore never touches history: it copies a snapshot back onto the
// live policy and the next Publish creates a new, higher version.
package versioning
