// Policyforge turns compliance questionnaire answers into policy documents.
//
// A catalog of YAML templates defines clause libraries and the rules that
// choose between them. Policyforge evaluates those rules against an
// organization's answers, renders the selected clauses and manages the
// resulting policies through review, approval and versioned publication.
//
// Usage:
//
//	# Check catalog templates
//	policyforge lint --dir catalog/
//
//	# Show which clauses a set of answers selects
//	policyforge evaluate aml --answers answers.yaml
//
//	# Render the policy body without storing it
//	policyforge render aml --answers answers.yaml
//
//	# Create and publish a policy
//	policyforge policy create --template aml --org acme --name "AML Policy" --answers answers.yaml
//	policyforge policy publish <policy-id> --by compliance@acme.test
//
//	# Run maintenance jobs, the enhancement worker and health endpoints
//	policyforge serve --config /etc/policyforge/config.yaml
package main

func main() {
	Execute()
}
