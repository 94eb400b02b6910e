// Package assembly turns a rules engine DecisionSet into the ordered, rendered
// clause list that forms a policy body.
//
// Included clauses are sorted by display order (ties by code) and rendered with
// the variables rules derived layered over the firm's raw answers. Suggested
// clauses are not rendered; they are returned with their reasons for a
// reviewer to opt in.
package assembly
