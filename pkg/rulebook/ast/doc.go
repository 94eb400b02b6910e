// Package ast defines the declarative building blocks of a policy template:
// clauses, rules, conditions and actions.
//
// A Template is the unit of authoring. It owns a clause library (the legal text,
// addressed by stable codes) and the rule set that decides which of those clauses
// a firm's policy should carry. Templates are read-only inputs to evaluation and
// assembly; nothing downstream mutates them.
//
// # Core Types
//
// Template: clause library plus rules, loaded from one catalog file
//
// Clause: a unit of policy text with a code, display order and template body
//
// Rule: a prioritised condition with one or more actions
//
// Condition: a leaf comparison or an all/any branch over answer fields
//
// Action: include, exclude, suggest or set_variable
//
// Location: source file, line and column for diagnostics
//
// All nodes keep their source location so lint and evaluation diagnostics can
// point back at the catalog file.
package ast
