package ast

// Visitor receives template nodes during Walk.
type Visitor interface {
	VisitTemplate(*Template) error
	VisitClause(*Clause) error
	VisitRule(*Rule) error
	VisitCondition(*Condition) error
	VisitAction(*Action) error
}

// Walk traverses the template and calls the visitor for each node.
// It returns the first error encountered.
func Walk(t *Template, visitor Visitor) error {
	if err := visitor.VisitTemplate(t); err != nil {
		return err
	}

	for _, clause := range t.Clauses {
		if err := visitor.VisitClause(clause); err != nil {
			return err
		}
	}

	for _, rule := range t.Rules {
		if err := visitor.VisitRule(rule); err != nil {
			return err
		}

		var condErr error
		WalkCondition(rule.Condition, func(c *Condition) bool {
			condErr = visitor.VisitCondition(c)
			return condErr == nil
		})
		if condErr != nil {
			return condErr
		}

		for _, action := range rule.Actions {
			if err := visitor.VisitAction(action); err != nil {
				return err
			}
		}
	}

	return nil
}

// WalkCondition visits the tree depth-first, pre-order. Returning false from
// fn stops the walk.
func WalkCondition(c *Condition, fn func(*Condition) bool) bool {
	if c == nil {
		return true
	}
	if !fn(c) {
		return false
	}
	for _, child := range c.Children {
		if !WalkCondition(child, fn) {
			return false
		}
	}
	return true
}
