package errors

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// ExtractContext reads the catalog file and returns the lines around the
// location, with the offending line marked and a caret under the column.
func ExtractContext(location ast.Location, contextLines int) string {
	if !location.IsValid() {
		return ""
	}

	file, err := os.Open(location.File)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return ""
	}

	errorLine := location.Line - 1
	if errorLine >= len(lines) {
		return ""
	}
	startLine := max(errorLine-contextLines, 0)
	endLine := min(errorLine+contextLines, len(lines)-1)

	var sb strings.Builder
	width := len(fmt.Sprintf("%d", endLine+1))

	for i := startLine; i <= endLine; i++ {
		prefix := "  "
		if i == errorLine {
			prefix = "->"
		}
		sb.WriteString(fmt.Sprintf("%s %*d | %s\n", prefix, width, i+1, lines[i]))

		if i == errorLine && location.Column > 0 {
			sb.WriteString(fmt.Sprintf("   %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", location.Column-1)))
		}
	}

	return sb.String()
}

// AddContext fills in the source context of every entry that has a location.
func (el *ErrorList) AddContext(contextLines int) {
	for _, err := range el.Errors {
		if err.Context == "" && err.Location.IsValid() {
			err.Context = ExtractContext(err.Location, contextLines)
		}
	}
}
