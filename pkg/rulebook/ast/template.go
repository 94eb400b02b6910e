package ast

// Clause is a unit of policy text addressed by a code that is unique within
// its template.
type Clause struct {
	Code         string
	Title        string
	DisplayOrder int
	Body         string // template source: {{ }}, {% if %}, {% for %}
	Mandatory    bool
	Tags         []string
	Location     Location
}

// HasTag reports whether the clause carries the tag.
func (c *Clause) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Template is a clause library together with the rules that select from it.
type Template struct {
	Code        string
	Name        string
	Version     string
	Description string
	Clauses     []*Clause
	Rules       []*Rule

	SourceFile string
	Location   Location
}

// Clause returns the clause with the given code, or nil.
func (t *Template) Clause(code string) *Clause {
	for _, c := range t.Clauses {
		if c.Code == code {
			return c
		}
	}
	return nil
}

// Library returns the clause library keyed by code.
func (t *Template) Library() map[string]*Clause {
	lib := make(map[string]*Clause, len(t.Clauses))
	for _, c := range t.Clauses {
		lib[c.Code] = c
	}
	return lib
}

// Rule returns the rule with the given ID, or nil.
func (t *Template) Rule(id string) *Rule {
	for _, r := range t.Rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// EnabledRules returns the enabled rules in declaration order.
func (t *Template) EnabledRules() []*Rule {
	var enabled []*Rule
	for _, r := range t.Rules {
		if r.IsEnabled() {
			enabled = append(enabled, r)
		}
	}
	return enabled
}
