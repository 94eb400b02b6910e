// Package template renders clause bodies.
//
// The language is deliberately small: interpolation, conditionals and loops
// over firm-supplied data.
//
//	{{ firm_name }}                       interpolate a variable
//	{{ director.name }}                   dotted lookup into objects and arrays
//	{% if has_board %}...{% endif %}      emit when the value is truthy
//	{% if x %}...{% else %}...{% endif %} with an alternative
//	{% for d in directors %}...{% endfor %}
//
// A body is compiled once into a small AST and then rendered any number of
// times. Rendering never fails: unknown variables render empty, non-array loop
// sources iterate zero times, and malformed tags are dropped at compile time
// with a Diagnostic. A malformed if or for opener drops its whole block, so
// guarded text is never emitted unconditionally. No tag syntax ever reaches
// the output.
//
// Every interpolated value passes through Escape, which neutralises HTML and
// markdown metacharacters, so answer text cannot inject markup downstream.
package template
