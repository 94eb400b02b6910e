package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON, colored on terminals.
	FormatJSON OutputFormat = "json"
	// FormatYAML is YAML output.
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat parses a --format flag value. Empty means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
	}
}

// Texter is implemented by results that know how to print themselves for
// humans. Values that do not implement it are printed with %v.
type Texter interface {
	WriteText(w io.Writer) error
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// FormatTo writes data to w in text form.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	if t, ok := data.(Texter); ok {
		return t.WriteText(w)
	}
	_, err := fmt.Fprintf(w, "%v\n", data)
	return err
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	// Color forces terminal colors on or off. Nil colors only when w is a
	// terminal.
	Color *bool
}

// FormatTo writes data to w as indented JSON.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	out := pretty.PrettyOptions(raw, &pretty.Options{Width: 80, Indent: "  "})
	if f.useColor(w) {
		out = pretty.Color(out, nil)
	}
	_, err = w.Write(out)
	return err
}

func (f *JSONFormatter) useColor(w io.Writer) bool {
	if f.Color != nil {
		return *f.Color
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && isatty.IsTerminal(file.Fd())
}

// YAMLFormatter formats output as YAML. Data is encoded through its JSON
// form so custom MarshalJSON methods and json tags apply, and field order is
// kept.
type YAMLFormatter struct{}

// FormatTo writes data to w as YAML.
func (f *YAMLFormatter) FormatTo(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// blockStyle drops the flow and quoted styles JSON input decodes with. The
// encoder still quotes strings that would otherwise read as another type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// NewFormatter creates a formatter for format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TextFormatter{}
	}
}

// Table writes rows under headers with aligned columns.
func Table(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
