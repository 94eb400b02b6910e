package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. The manager and enhancement worker set the same keys
// on their own spans.
const (
	AttrRequestID      = "request.id"
	AttrOrganizationID = "organization.id"
	AttrActor          = "actor"

	AttrTemplateCode    = "template.code"
	AttrTemplateVersion = "template.version"

	AttrPolicyID       = "policy.id"
	AttrPolicyStatus   = "policy.status"
	AttrPolicyVersion  = "policy.version"
	AttrPolicyRevision = "policy.revision"
	AttrPolicyClauses  = "policy.clauses"

	AttrRulesFired = "engine.rules_fired"

	AttrJobID = "enhance.job_id"

	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"

	AttrErrorMessage = "error.message"
)

// AttributeBuilder provides a fluent interface for building span attributes.
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates a new attribute builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{attrs: make([]attribute.KeyValue, 0, 8)}
}

// WithRequest adds request and tenant attributes. Empty values are skipped.
func (ab *AttributeBuilder) WithRequest(requestID, organizationID, actor string) *AttributeBuilder {
	ab.addString(AttrRequestID, requestID)
	ab.addString(AttrOrganizationID, organizationID)
	ab.addString(AttrActor, actor)
	return ab
}

// WithTemplate adds the template code and version.
func (ab *AttributeBuilder) WithTemplate(code, version string) *AttributeBuilder {
	ab.addString(AttrTemplateCode, code)
	ab.addString(AttrTemplateVersion, version)
	return ab
}

// WithPolicy adds the policy ID and status.
func (ab *AttributeBuilder) WithPolicy(policyID, status string) *AttributeBuilder {
	ab.addString(AttrPolicyID, policyID)
	ab.addString(AttrPolicyStatus, status)
	return ab
}

// WithVersion adds a published version number.
func (ab *AttributeBuilder) WithVersion(number int) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.Int(AttrPolicyVersion, number))
	return ab
}

// WithClauses adds the assembled clause count.
func (ab *AttributeBuilder) WithClauses(n int) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.Int(AttrPolicyClauses, n))
	return ab
}

// WithJob adds an enhancement job ID.
func (ab *AttributeBuilder) WithJob(jobID string) *AttributeBuilder {
	ab.addString(AttrJobID, jobID)
	return ab
}

func (ab *AttributeBuilder) addString(key, value string) {
	if value != "" {
		ab.attrs = append(ab.attrs, attribute.String(key, value))
	}
}

// Build returns the attributes as a trace.SpanStartOption.
func (ab *AttributeBuilder) Build() trace.SpanStartOption {
	return trace.WithAttributes(ab.attrs...)
}

// Apply sets the attributes on a span.
func (ab *AttributeBuilder) Apply(span trace.Span) {
	span.SetAttributes(ab.attrs...)
}

// Attributes returns the raw attribute slice.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}
