// Package policy defines the Policy aggregate and its immutable Version
// snapshots.
//
// A Policy is created from a clause template, re-assembled whenever its
// answers change, enhanced asynchronously, and published into numbered
// versions. Its status follows a small lifecycle:
//
//	draft ──► in_review ──► approved ──► expired
//	  ▲           │             │           │
//	  └───────────┘             │           │
//	  ▲                         │           │
//	  └─────────────────────────┼───────────┘
//	any non-archived status ──► archived
//
// Revision increases on every stored mutation and is the optimistic
// concurrency token used by background enhancement writes.
package policy
