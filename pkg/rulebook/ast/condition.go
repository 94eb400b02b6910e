package ast

import (
	"strings"

	"ledgerline/policyforge/pkg/answers"
)

// ConditionKind is the node type of a condition tree.
type ConditionKind string

const (
	ConditionLeaf ConditionKind = "leaf" // field op value
	ConditionAll  ConditionKind = "all"  // AND of children
	ConditionAny  ConditionKind = "any"  // OR of children
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorIncludes    Operator = "includes"
	OperatorExists      Operator = "exists"
)

// Operators lists every supported operator in canonical form.
var Operators = []Operator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorIncludes,
	OperatorExists,
}

var operatorAliases = map[string]Operator{
	"equals":       OperatorEquals,
	"eq":           OperatorEquals,
	"==":           OperatorEquals,
	"not_equals":   OperatorNotEquals,
	"not-equals":   OperatorNotEquals,
	"ne":           OperatorNotEquals,
	"!=":           OperatorNotEquals,
	"greater_than": OperatorGreaterThan,
	"greater-than": OperatorGreaterThan,
	"gt":           OperatorGreaterThan,
	">":            OperatorGreaterThan,
	"less_than":    OperatorLessThan,
	"less-than":    OperatorLessThan,
	"lt":           OperatorLessThan,
	"<":            OperatorLessThan,
	"includes":     OperatorIncludes,
	"contains":     OperatorIncludes,
	"exists":       OperatorExists,
}

// NormalizeOperator maps an authored operator spelling to its canonical form.
// Unknown spellings are returned unchanged so validation can report them.
func NormalizeOperator(s string) Operator {
	if op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return op
	}
	return Operator(s)
}

// IsValid reports whether o is a canonical operator.
func (o Operator) IsValid() bool {
	for _, known := range Operators {
		if o == known {
			return true
		}
	}
	return false
}

// Condition is a node in a condition tree. Leaves compare a named answer field
// against a literal; branches combine their children with AND (all) or OR (any).
type Condition struct {
	Kind     ConditionKind
	Field    string        // Answer field, dotted paths allowed (leaf only)
	Operator Operator      // Comparison operator (leaf only)
	Value    answers.Value // Literal operand (leaf only; unused by exists)
	Children []*Condition  // Child nodes (all/any only)
	Location Location
}

// Leaf builds a leaf condition.
func Leaf(field string, op Operator, value any) *Condition {
	return &Condition{
		Kind:     ConditionLeaf,
		Field:    field,
		Operator: op,
		Value:    answers.FromAny(value),
	}
}

// All builds an AND branch.
func All(children ...*Condition) *Condition {
	return &Condition{Kind: ConditionAll, Children: children}
}

// Any builds an OR branch.
func Any(children ...*Condition) *Condition {
	return &Condition{Kind: ConditionAny, Children: children}
}

// IsLeaf returns true if this is a comparison node.
func (c *Condition) IsLeaf() bool {
	return c.Kind == ConditionLeaf
}

// Depth returns the nesting depth of the tree. A single leaf has depth 1.
func (c *Condition) Depth() int {
	if c == nil {
		return 0
	}
	deepest := 0
	for _, child := range c.Children {
		if d := child.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Fields returns every answer field referenced by the tree, in traversal order.
func (c *Condition) Fields() []string {
	var fields []string
	WalkCondition(c, func(n *Condition) bool {
		if n.IsLeaf() && n.Field != "" {
			fields = append(fields, n.Field)
		}
		return true
	})
	return fields
}
