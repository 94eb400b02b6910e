package ast

import "fmt"

// Location is the position of a node in its catalog file.
type Location struct {
	File   string // Path to the catalog file
	Line   int    // Line number (1-based)
	Column int    // Column number (1-based)
}

// String returns "file:line:column", or "<unknown>" when no file is recorded.
func (l Location) String() string {
	if l.File == "" {
		if l.Line > 0 {
			return fmt.Sprintf("%d:%d", l.Line, l.Column)
		}
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid returns true if the location has file and line information.
func (l Location) IsValid() bool {
	return l.File != "" && l.Line > 0
}
