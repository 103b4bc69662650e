// Maskwise is a policy engine for PII anonymization policies.
//
// It validates declarative YAML policy documents, stores them with an
// append-only version history, and expands curated compliance templates
// into ready-to-use policies.
//
// Usage:
//
//	# Validate a policy file
//	maskwise validate policy.yaml
//
//	# Create a policy from a file
//	maskwise policy create --file policy.yaml
//
//	# List stored policies
//	maskwise policy list
//
//	# Expand a template into a new policy
//	maskwise template apply gdpr-baseline --name "GDPR Production"
//
//	# Show version information
//	maskwise version
package main

func main() {
	Execute()
}
