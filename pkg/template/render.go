package template

import (
	"strings"

	"ledgerline/policyforge/pkg/answers"
)

// scope resolves names against loop bindings first, innermost outward, and
// then against the variable set.
type scope struct {
	vars   answers.Set
	parent *scope
	name   string
	value  answers.Value
}

func (s *scope) lookup(path string) (answers.Value, bool) {
	head, rest, _ := strings.Cut(path, ".")
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name != "" && cur.name == head {
			return answers.LookupValue(cur.value, rest)
		}
		if cur.parent == nil {
			return cur.vars.Lookup(path)
		}
	}
	return answers.Value{}, false
}

// Render executes the template with the given variables.
func (t *Template) Render(vars answers.Set) string {
	var sb strings.Builder
	sb.Grow(len(t.source))
	renderNodes(&sb, t.nodes, &scope{vars: vars})
	return sb.String()
}

// Render compiles and renders src in one step. Compile diagnostics are
// discarded; use Compile to inspect them.
func Render(src string, vars answers.Set) string {
	return Compile(src).Render(vars)
}

func renderNodes(sb *strings.Builder, nodes []Node, sc *scope) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *TextNode:
			sb.WriteString(n.Text)

		case *VarNode:
			if v, ok := sc.lookup(n.Path); ok {
				sb.WriteString(Escape(v.Text()))
			}

		case *IfNode:
			v, _ := sc.lookup(n.Path)
			if v.Truthy() {
				renderNodes(sb, n.Then, sc)
			} else {
				renderNodes(sb, n.Else, sc)
			}

		case *ForNode:
			v, _ := sc.lookup(n.Path)
			elems, ok := v.AsArray()
			if !ok {
				continue
			}
			for _, elem := range elems {
				renderNodes(sb, n.Body, &scope{parent: sc, name: n.Var, value: elem})
			}
		}
	}
}
