package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Diagnostic is a problem found while compiling a template. The offending
// construct is dropped from the compiled tree.
type Diagnostic struct {
	Message  string   `json:"message"`
	Position Position `json:"position"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Position, d.Message)
}

// Node is an element of a compiled template.
type Node interface {
	node()
}

// TextNode is literal template text.
type TextNode struct {
	Text string
}

// VarNode interpolates a variable.
type VarNode struct {
	Path string
	Pos  Position
}

// IfNode renders Then when Path is truthy and Else otherwise.
type IfNode struct {
	Path string
	Then []Node
	Else []Node
	Pos  Position
}

// ForNode renders Body once per element of the array at Path, with Var bound
// to the element.
type ForNode struct {
	Var  string
	Path string
	Body []Node
	Pos  Position
}

func (*TextNode) node() {}
func (*VarNode) node()  {}
func (*IfNode) node()   {}
func (*ForNode) node()  {}

var (
	pathPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Template is a compiled template body.
type Template struct {
	source string
	nodes  []Node
	diags  []Diagnostic
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// Diagnostics returns the problems found at compile time.
func (t *Template) Diagnostics() []Diagnostic { return t.diags }

// frame is an open block on the compile stack. A discard frame stands in for
// a malformed block opener: its body is consumed up to the matching end tag
// and never rendered.
type frame struct {
	kind    string
	at      Position
	ifNode  *IfNode
	forNode *ForNode
	inElse  bool
	discard bool
}

func (f *frame) append(n Node) {
	switch {
	case f.discard:
	case f.forNode != nil:
		f.forNode.Body = append(f.forNode.Body, n)
	case f.inElse:
		f.ifNode.Else = append(f.ifNode.Else, n)
	default:
		f.ifNode.Then = append(f.ifNode.Then, n)
	}
}


// Compile parses src into a Template. It never fails; problems are reported as
// diagnostics and the offending constructs are dropped or auto-closed.
func Compile(src string) *Template {
	tokens, diags := lex(src)
	t := &Template{source: src, diags: diags}

	var stack []*frame
	emit := func(n Node) {
		if len(stack) == 0 {
			t.nodes = append(t.nodes, n)
			return
		}
		stack[len(stack)-1].append(n)
	}
	report := func(pos Position, format string, args ...any) {
		t.diags = append(t.diags, Diagnostic{Message: fmt.Sprintf(format, args...), Position: pos})
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokenText:
			emit(&TextNode{Text: tok.value})

		case tokenVar:
			if !pathPattern.MatchString(tok.value) {
				report(tok.pos, "invalid expression {{ %s }} dropped", tok.value)
				continue
			}
			emit(&VarNode{Path: tok.value, Pos: tok.pos})

		case tokenTag:
			fields := strings.Fields(tok.value)
			if len(fields) == 0 {
				report(tok.pos, "empty tag dropped")
				continue
			}

			switch fields[0] {
			case "if":
				if len(fields) != 2 || !pathPattern.MatchString(fields[1]) {
					report(tok.pos, "malformed tag {%% %s %%} dropped with its body", tok.value)
					stack = append(stack, &frame{kind: "if", at: tok.pos, discard: true})
					continue
				}
				n := &IfNode{Path: fields[1], Pos: tok.pos}
				emit(n)
				stack = append(stack, &frame{kind: "if", at: tok.pos, ifNode: n})

			case "else":
				top := topFrame(stack)
				if len(fields) != 1 || top == nil || top.kind != "if" || top.inElse {
					report(tok.pos, "unexpected {%% else %%} dropped")
					continue
				}
				top.inElse = true

			case "endif", "endfor":
				want := strings.TrimPrefix(fields[0], "end")
				top := topFrame(stack)
				if top == nil || top.kind != want {
					report(tok.pos, "unexpected {%% %s %%} dropped", fields[0])
					continue
				}
				stack = stack[:len(stack)-1]

			case "for":
				if len(fields) != 4 || fields[2] != "in" ||
					!identPattern.MatchString(fields[1]) || !pathPattern.MatchString(fields[3]) {
					report(tok.pos, "malformed tag {%% %s %%} dropped with its body", tok.value)
					stack = append(stack, &frame{kind: "for", at: tok.pos, discard: true})
					continue
				}
				n := &ForNode{Var: fields[1], Path: fields[3], Pos: tok.pos}
				emit(n)
				stack = append(stack, &frame{kind: "for", at: tok.pos, forNode: n})

			default:
				report(tok.pos, "unknown tag {%% %s %%} dropped", fields[0])
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		report(stack[i].at, "unclosed {%% %s %%} closed at end of template", stack[i].kind)
	}

	return t
}

func topFrame(stack []*frame) *frame {
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}
