// Package errors carries catalog parse and lint errors with source locations,
// surrounding file context and fix suggestions.
//
// Errors accumulate in an ErrorList so one pass over a catalog file reports
// every problem rather than stopping at the first.
package errors
