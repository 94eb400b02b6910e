package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

// builder constructs AST nodes from the intermediate YAML structures.
type builder struct {
	sourcePath string
	maxDepth   int
	errors     *rbErrors.ErrorList
}

func newBuilder(sourcePath string, maxDepth int) *builder {
	return &builder{
		sourcePath: sourcePath,
		maxDepth:   maxDepth,
		errors:     rbErrors.NewErrorList(),
	}
}

func (b *builder) loc(line, column int) ast.Location {
	return ast.Location{File: b.sourcePath, Line: line, Column: column}
}

func (b *builder) buildTemplate(yt *yamlTemplate) (*ast.Template, error) {
	tmpl := &ast.Template{
		Code:        strings.TrimSpace(yt.Code),
		Name:        yt.Name,
		Version:     yt.Version,
		Description: yt.Description,
		Clauses:     make([]*ast.Clause, 0, len(yt.Clauses)),
		Rules:       make([]*ast.Rule, 0, len(yt.Rules)),
		SourceFile:  b.sourcePath,
		Location:    b.loc(max(yt.line, 1), max(yt.column, 1)),
	}

	if tmpl.Code == "" {
		b.errors.AddErrorWithSuggestion(rbErrors.ErrorTypeStructural,
			"Template code is required", tmpl.Location,
			rbErrors.SuggestMissingField("code", "aml_policy"))
	}

	seenClauses := make(map[string]ast.Location, len(yt.Clauses))
	for i := range yt.Clauses {
		clause := b.buildClause(&yt.Clauses[i], i)
		if clause == nil {
			continue
		}
		if prev, dup := seenClauses[clause.Code]; dup {
			b.errors.AddError(rbErrors.ErrorTypeSemantic,
				fmt.Sprintf("Duplicate clause code %q (first defined at %s)", clause.Code, prev),
				clause.Location)
			continue
		}
		seenClauses[clause.Code] = clause.Location
		tmpl.Clauses = append(tmpl.Clauses, clause)
	}

	seenRules := make(map[string]ast.Location, len(yt.Rules))
	for i := range yt.Rules {
		rule := b.buildRule(&yt.Rules[i], i)
		if rule == nil {
			continue
		}
		if prev, dup := seenRules[rule.ID]; dup {
			b.errors.AddError(rbErrors.ErrorTypeSemantic,
				fmt.Sprintf("Duplicate rule id %q (first defined at %s)", rule.ID, prev),
				rule.Location)
			continue
		}
		seenRules[rule.ID] = rule.Location
		tmpl.Rules = append(tmpl.Rules, rule)
	}

	if b.errors.HasErrors() {
		return nil, b.errors
	}
	return tmpl, nil
}

func (b *builder) buildClause(yc *yamlClause, index int) *ast.Clause {
	clause := &ast.Clause{
		Code:         strings.TrimSpace(yc.Code),
		Title:        yc.Title,
		DisplayOrder: yc.DisplayOrder,
		Body:         yc.Body,
		Mandatory:    yc.Mandatory,
		Tags:         yc.Tags,
		Location:     b.loc(yc.line, yc.column),
	}
	if clause.Code == "" {
		b.errors.AddErrorWithSuggestion(rbErrors.ErrorTypeStructural,
			fmt.Sprintf("Clause at index %d has no code", index), clause.Location,
			rbErrors.SuggestMissingField("code", "purpose"))
		return nil
	}
	return clause
}

func (b *builder) buildRule(yr *yamlRule, index int) *ast.Rule {
	rule := &ast.Rule{
		ID:          strings.TrimSpace(yr.ID),
		Description: yr.Description,
		Priority:    yr.Priority,
		Enabled:     true,
		Actions:     make([]*ast.Action, 0, len(yr.Actions)),
		Location:    b.loc(yr.line, yr.column),
	}
	if yr.Enabled != nil {
		rule.Enabled = *yr.Enabled
	}

	if rule.ID == "" {
		b.errors.AddErrorWithSuggestion(rbErrors.ErrorTypeStructural,
			fmt.Sprintf("Rule at index %d has no id", index), rule.Location,
			rbErrors.SuggestMissingField("id", "domestic-pep"))
		return nil
	}

	if isSet(&yr.Conditions) {
		rule.Condition = b.buildCondition(&yr.Conditions, 1)
	}

	if len(yr.Actions) == 0 {
		b.errors.AddError(rbErrors.ErrorTypeStructural,
			fmt.Sprintf("Rule %q has no actions", rule.ID), rule.Location)
		return nil
	}

	ok := true
	for i := range yr.Actions {
		action, err := b.buildAction(&yr.Actions[i])
		if err != nil {
			b.errors.Add(err)
			ok = false
			continue
		}
		rule.Actions = append(rule.Actions, action)
	}
	if !ok {
		return nil
	}
	return rule
}

// buildCondition converts a YAML node into a condition tree. Shapes it cannot
// interpret are kept as malformed nodes rather than rejected.
func (b *builder) buildCondition(node *yaml.Node, depth int) *ast.Condition {
	location := b.loc(node.Line, node.Column)

	if depth > b.maxDepth {
		b.errors.AddError(rbErrors.ErrorTypeStructural,
			fmt.Sprintf("Condition nesting exceeds maximum depth %d", b.maxDepth), location)
		return &ast.Condition{Kind: ast.ConditionAll, Location: location}
	}

	switch node.Kind {
	case yaml.AliasNode:
		return b.buildCondition(node.Alias, depth)

	case yaml.SequenceNode:
		if len(node.Content) == 1 {
			return b.buildCondition(node.Content[0], depth)
		}
		return &ast.Condition{
			Kind:     ast.ConditionAll,
			Children: b.buildChildren(node, depth),
			Location: location,
		}

	case yaml.MappingNode:
		fields := mappingFields(node)
		for _, key := range []string{"all", "any", "not"} {
			children, ok := fields[key]
			if !ok {
				continue
			}
			cond := &ast.Condition{Kind: ast.ConditionKind(key), Location: location}
			if children.Kind == yaml.SequenceNode {
				cond.Children = b.buildChildren(children, depth)
			} else {
				cond.Children = []*ast.Condition{b.buildCondition(children, depth+1)}
			}
			return cond
		}
		return b.buildLeaf(fields, location)

	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
	}

	// Anything else is a leaf with no field, which validation rejects.
	return &ast.Condition{Kind: ast.ConditionLeaf, Location: location}
}

func (b *builder) buildChildren(seq *yaml.Node, depth int) []*ast.Condition {
	children := make([]*ast.Condition, 0, len(seq.Content))
	for _, child := range seq.Content {
		if c := b.buildCondition(child, depth+1); c != nil {
			children = append(children, c)
		}
	}
	return children
}

func (b *builder) buildLeaf(fields map[string]*yaml.Node, location ast.Location) *ast.Condition {
	cond := &ast.Condition{Kind: ast.ConditionLeaf, Location: location}

	if n, ok := fields["field"]; ok && n.Kind == yaml.ScalarNode {
		cond.Field = strings.TrimSpace(n.Value)
	}
	if n, ok := fields["operator"]; ok && n.Kind == yaml.ScalarNode {
		cond.Operator = ast.NormalizeOperator(n.Value)
	}
	if n, ok := fields["value"]; ok {
		cond.Value = decodeValue(n)
	}
	return cond
}

func (b *builder) buildAction(ya *yamlAction) (*ast.Action, *rbErrors.Error) {
	location := b.loc(ya.line, ya.column)
	actionType := ast.ActionType(strings.ToLower(strings.TrimSpace(ya.Type)))

	if !actionType.IsValid() {
		valid := make([]string, len(ast.ActionTypes))
		for i, t := range ast.ActionTypes {
			valid[i] = string(t)
		}
		return nil, &rbErrors.Error{
			Type:       rbErrors.ErrorTypeStructural,
			Message:    fmt.Sprintf("Unknown action type %q", ya.Type),
			Location:   location,
			Suggestion: rbErrors.SuggestClosest(ya.Type, valid),
		}
	}

	action := &ast.Action{
		Type:     actionType,
		Reason:   ya.Reason,
		Location: location,
	}

	switch actionType {
	case ast.ActionInclude, ast.ActionExclude, ast.ActionSuggest:
		codes := make([]string, 0, len(ya.Clauses)+1)
		for _, code := range append([]string(ya.Clauses), ya.Clause) {
			if code = strings.TrimSpace(code); code != "" {
				codes = append(codes, code)
			}
		}
		if len(codes) == 0 {
			return nil, &rbErrors.Error{
				Type:       rbErrors.ErrorTypeStructural,
				Message:    fmt.Sprintf("%s action names no clauses", actionType),
				Location:   location,
				Suggestion: rbErrors.SuggestMissingField("clauses", "[clause_code]"),
			}
		}
		action.Clauses = codes

	case ast.ActionSetVariable:
		action.Variable = strings.TrimSpace(ya.Variable)
		if action.Variable == "" {
			action.Variable = strings.TrimSpace(ya.Name)
		}
		if action.Variable == "" {
			return nil, &rbErrors.Error{
				Type:       rbErrors.ErrorTypeStructural,
				Message:    "set_variable action has no variable name",
				Location:   location,
				Suggestion: rbErrors.SuggestMissingField("variable", "approver_role"),
			}
		}
		action.From = strings.TrimSpace(ya.From)
		if isSet(&ya.Value) {
			v := decodeValue(&ya.Value)
			action.Value = &v
		}
		if isSet(&ya.Default) {
			v := decodeValue(&ya.Default)
			action.Default = &v
		}
		if action.Value == nil && action.From == "" {
			return nil, &rbErrors.Error{
				Type:       rbErrors.ErrorTypeStructural,
				Message:    fmt.Sprintf("set_variable %q needs a value or a from field", action.Variable),
				Location:   location,
				Suggestion: "Add 'value: <literal>' or 'from: <answer field>'",
			}
		}
	}

	return action, nil
}

// mappingFields indexes a mapping node's values by key.
func mappingFields(node *yaml.Node) map[string]*yaml.Node {
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fields[node.Content[i].Value] = node.Content[i+1]
	}
	return fields
}

// decodeValue converts a YAML literal into an answer value. Decoding failures
// yield null.
func decodeValue(node *yaml.Node) answers.Value {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return answers.Null()
	}
	return answers.FromAny(raw)
}
