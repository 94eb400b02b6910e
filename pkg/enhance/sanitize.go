package enhance

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ledgerline/policyforge/pkg/template"
)

// Sanitize reduces generated prose to plain text and escapes it the same way
// the template renderer escapes variables. Markup is dropped; script and
// style contents are removed entirely.
func Sanitize(text string) string {
	plain := text
	if strings.ContainsAny(text, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			doc.Find("script, style, noscript, iframe").Remove()
			plain = doc.Text()
		}
	}
	return template.Escape(normalizeSpace(plain))
}

// normalizeSpace trims each line and collapses runs of blank lines to one.
func normalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
