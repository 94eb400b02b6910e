package template

import "strings"

// Escape neutralises characters that HTML or markdown renderers would
// interpret. HTML-significant characters and braces become entities; markdown
// inline metacharacters are backslash-escaped. Braces are encoded so a value
// can never form template tag syntax in the output.
func Escape(s string) string {
	if !strings.ContainsAny(s, "&<>\"'{}\\`*_[]#|~") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + len(s)/4)
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&#39;")
		case '{':
			sb.WriteString("&#123;")
		case '}':
			sb.WriteString("&#125;")
		case '\\', '`', '*', '_', '[', ']', '#', '|', '~':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
