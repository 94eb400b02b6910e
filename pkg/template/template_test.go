package template

import (
	"strings"
	"sync"
	"testing"

	"ledgerline/policyforge/pkg/answers"
)

func vars(t *testing.T, js string) answers.Set {
	t.Helper()
	set, err := answers.ParseJSON([]byte(js))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	return set
}

func TestRender_Interpolation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars string
		want string
	}{
		{"known field", "Approver: {{ approver_role }}", `{"approver_role": "SMF17"}`, "Approver: SMF17"},
		{"unknown field renders empty", "Approver: {{ approver_role }}", `{}`, "Approver: "},
		{"no spaces", "{{name}}!", `{"name": "Acme"}`, "Acme!"},
		{"number plain", "Limit {{ limit }}", `{"limit": 1000000}`, "Limit 1000000"},
		{"decimal trimmed", "Rate {{ rate }}", `{"rate": 2.50}`, "Rate 2.5"},
		{"bool", "{{ flag }}", `{"flag": false}`, "false"},
		{"array joined", "Regions: {{ regions }}", `{"regions": ["UK", "EU"]}`, "Regions: UK, EU"},
		{"object empty", "[{{ firm }}]", `{"firm": {"a": 1}}`, "[]"},
		{"null empty", "<{{ x }}>", `{"x": null}`, "<>"},
		{"dotted", "{{ firm.size }}", `{"firm": {"size": "small"}}`, "small"},
		{"array index", "{{ directors.1 }}", `{"directors": ["Ada", "Grace"]}`, "Grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.src, vars(t, tt.vars))
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_Escaping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`<script>alert("x")</script>`, `&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;`},
		{`Tom & Jerry's`, `Tom &amp; Jerry&#39;s`},
		{`**bold** _em_ [link](u) # h`, `\*\*bold\*\* \_em\_ \[link\](u) \# h`},
		{"`code` | ~strike~ \\", "\\`code\\` \\| \\~strike\\~ \\\\"},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Render("{{ v }}", answers.Set{"v": answers.String(tt.in)})
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_InterpolatedTagSyntaxIsInert(t *testing.T) {
	got := Render("Hello {{ name }}", answers.Set{"name": answers.String("{{ secret }}{% if x %}")})
	want := "Hello &#123;&#123; secret &#125;&#125;&#123;% if x %&#125;"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
	if strings.Contains(got, "{{") || strings.Contains(got, "{%") {
		t.Errorf("value formed tag syntax: %q", got)
	}
}

func TestRender_Conditionals(t *testing.T) {
	tests := []struct {
		name string
		vars string
		want string
	}{
		{"true", `{"board": true}`, "[yes]"},
		{"non-empty string", `{"board": "x"}`, "[yes]"},
		{"non-zero number", `{"board": 2}`, "[yes]"},
		{"non-empty array", `{"board": [1]}`, "[yes]"},
		{"false", `{"board": false}`, "[no]"},
		{"empty string", `{"board": ""}`, "[no]"},
		{"zero", `{"board": 0}`, "[no]"},
		{"empty array", `{"board": []}`, "[no]"},
		{"missing", `{}`, "[no]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render("[{% if board %}yes{% else %}no{% endif %}]", vars(t, tt.vars))
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_Loops(t *testing.T) {
	v := vars(t, `{
		"item": "outer",
		"directors": [{"name": "Ada", "role": "CEO"}, {"name": "Grace", "role": "CFO"}],
		"regions": ["UK", "EU"],
		"nested": [["a", "b"], ["c"]],
		"scalar": "not a list"
	}`)

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"objects", "{% for d in directors %}{{ d.name }} ({{ d.role }}); {% endfor %}", "Ada (CEO); Grace (CFO); "},
		{"scalars", "{% for r in regions %}<{{ r }}>{% endfor %}", "<UK><EU>"},
		{"non-array zero iterations", "[{% for x in scalar %}{{ x }}{% endfor %}]", "[]"},
		{"missing zero iterations", "[{% for x in nope %}{{ x }}{% endfor %}]", "[]"},
		{"shadowing", "{% for item in regions %}{{ item }}{% endfor %}-{{ item }}", "UKEU-outer"},
		{"outer visible in body", "{% for r in regions %}{{ r }}/{{ item }} {% endfor %}", "UK/outer EU/outer "},
		{"nested loops", "{% for row in nested %}{% for c in row %}{{ c }}{% endfor %}|{% endfor %}", "ab|c|"},
		{"if inside for", "{% for d in directors %}{% if d.role %}{{ d.name }}{% endif %}{% endfor %}", "AdaGrace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.src, v); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompile_Lenient(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		want      string
		wantDiags int
	}{
		{"stray endif", "a{% endif %}b", "ab", 1},
		{"unknown tag", "a{% include x %}b", "ab", 1},
		{"else outside if", "a{% else %}b", "ab", 1},
		{"double else", "{% if t %}a{% else %}b{% else %}c{% endif %}", "a", 1},
		{"unclosed if", "{% if t %}yes", "yes", 1},
		{"unclosed for", "{% for r in rs %}{{ r }}", "xy", 1},
		{"unterminated var", "Hello {{ name", "Hello ", 1},
		{"unterminated var keeps following text", "Hello {{ name\nnext line", "Hello \nnext line", 1},
		{"unterminated tag", "Hello {% if", "Hello ", 1},
		{"two unterminated", "{{ a {{ b", " ", 2},
		{"invalid expression", "x{{ a | upper }}y", "xy", 1},
		{"malformed for drops body", "{% for in rs %}z{% endfor %}", "", 1},
		{"malformed if comparison drops body", "{% if pep == true %}Apply EDD.{% endif %}done", "done", 1},
		{"malformed if operator drops body", "{% if risk > 70 %}Monitor.{% endif %}", "", 1},
		{"malformed if negation drops both branches", "{% if not pep %}a{% else %}b{% endif %}c", "c", 1},
		{"malformed if with nested block", "{% if a b %}{% if t %}x{% endif %}{% endif %}y", "y", 1},
		{"unclosed malformed if", "{% if a b %}hidden", "", 2},
		{"mismatched end", "{% if t %}{% for r in rs %}{{ r }}{% endif %}", "xy", 3},
	}

	v := vars(t, `{"t": true, "rs": ["x", "y"], "name": "n"}`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := Compile(tt.src)
			if got := tmpl.Render(v); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
			if got := len(tmpl.Diagnostics()); got != tt.wantDiags {
				t.Errorf("len(Diagnostics) = %d, want %d: %v", got, tt.wantDiags, tmpl.Diagnostics())
			}
			out := tmpl.Render(v)
			if strings.Contains(out, "{{") || strings.Contains(out, "{%") {
				t.Errorf("tag syntax leaked: %q", out)
			}
		})
	}
}

func TestCompile_DiagnosticPosition(t *testing.T) {
	tmpl := Compile("line one\n  {% bogus %}")
	diags := tmpl.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("len(Diagnostics) = %d, want 1", len(diags))
	}
	if diags[0].Position.Line != 2 || diags[0].Position.Column != 3 {
		t.Errorf("Position = %s, want 2:3", diags[0].Position)
	}
}

func TestRender_Deterministic(t *testing.T) {
	src := "{% for d in directors %}{{ d.name }}{% endfor %} {{ firm }}"
	v := vars(t, `{"directors": [{"name": "A"}, {"name": "B"}], "firm": "F"}`)
	tmpl := Compile(src)
	first := tmpl.Render(v)
	for i := 0; i < 20; i++ {
		if got := tmpl.Render(v); got != first {
			t.Fatalf("render %d = %q, want %q", i, got, first)
		}
	}
}

func TestCache(t *testing.T) {
	c := NewCache(2)

	a1 := c.Compile("A {{ x }}")
	a2 := c.Compile("A {{ x }}")
	if a1 != a2 {
		t.Error("identical sources should share one compiled template")
	}

	c.Compile("B")
	c.Compile("A {{ x }}") // refresh A
	c.Compile("C")         // evicts B

	stats := c.Stats()
	if stats.Size != 2 {
		t.Errorf("Size = %d, want 2", stats.Size)
	}
	if stats.Hits != 2 || stats.Misses != 3 {
		t.Errorf("Hits/Misses = %d/%d, want 2/3", stats.Hits, stats.Misses)
	}
	if got := c.Compile("A {{ x }}"); got != a1 {
		t.Error("A was evicted, want B evicted")
	}

	if got := c.Render("A {{ x }}", answers.Set{"x": answers.Int(1)}); got != "A 1" {
		t.Errorf("Render() = %q", got)
	}

	c.Purge()
	if c.Stats().Size != 0 {
		t.Error("Purge did not empty the cache")
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache(8)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := c.Render("{{ v }}", answers.Set{"v": answers.String("ok")}); got != "ok" {
					t.Errorf("Render() = %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
