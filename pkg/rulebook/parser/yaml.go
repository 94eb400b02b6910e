package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlTemplate is the on-disk shape of a catalog file before AST construction.
type yamlTemplate struct {
	Code        string       `yaml:"code"`
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Description string       `yaml:"description"`
	Clauses     []yamlClause `yaml:"clauses"`
	Rules       []yamlRule   `yaml:"rules"`

	line, column int
}

type yamlClause struct {
	Code         string   `yaml:"code"`
	Title        string   `yaml:"title"`
	DisplayOrder int      `yaml:"display_order"`
	Body         string   `yaml:"body"`
	Mandatory    bool     `yaml:"mandatory"`
	Tags         []string `yaml:"tags"`

	line, column int
}

type yamlRule struct {
	ID          string       `yaml:"id"`
	Description string       `yaml:"description"`
	Priority    int          `yaml:"priority"`
	Enabled     *bool        `yaml:"enabled"` // Pointer to distinguish unset vs false
	Conditions  yaml.Node    `yaml:"conditions"`
	Actions     []yamlAction `yaml:"actions"`

	line, column int
}

type yamlAction struct {
	Type     string     `yaml:"type"`
	Clauses  stringList `yaml:"clauses"`
	Clause   string     `yaml:"clause"`
	Reason   string     `yaml:"reason"`
	Variable string     `yaml:"variable"`
	Name     string     `yaml:"name"`
	Value    yaml.Node  `yaml:"value"`
	From     string     `yaml:"from"`
	Default  yaml.Node  `yaml:"default"`

	line, column int
}

func (t *yamlTemplate) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlTemplate
	if err := node.Decode((*plain)(t)); err != nil {
		return err
	}
	t.line, t.column = node.Line, node.Column
	return nil
}

func (c *yamlClause) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlClause
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}
	c.line, c.column = node.Line, node.Column
	return nil
}

func (r *yamlRule) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlRule
	if err := node.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line, r.column = node.Line, node.Column
	return nil
}

func (a *yamlAction) UnmarshalYAML(node *yaml.Node) error {
	type plain yamlAction
	if err := node.Decode((*plain)(a)); err != nil {
		return err
	}
	a.line, a.column = node.Line, node.Column
	return nil
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = stringList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return fmt.Errorf("line %d: expected a clause code or list of codes", node.Line)
	}
}

// isSet reports whether an optional yaml.Node field was present in the source.
func isSet(node *yaml.Node) bool {
	return node != nil && node.Kind != 0
}

func parseYAMLFile(path string) (*yamlTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseYAMLBytes(data)
}

func parseYAMLBytes(data []byte) (*yamlTemplate, error) {
	var tmpl yamlTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
