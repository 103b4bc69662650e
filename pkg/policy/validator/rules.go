package validator

import (
	"fmt"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/catalog"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
)

// weakThreshold is the confidence level below which detections are
// considered noisy enough to warn about.
const weakThreshold = 0.5

// CheckRules runs the business-rule checks on an already schema-valid
// document and returns advisory warnings. Warnings never block
// persistence; a document can be valid and still carry warnings.
func CheckRules(doc *document.PolicyDocument) []string {
	var warnings []string
	warnings = append(warnings, checkDuplicateTypes(doc)...)
	warnings = append(warnings, checkWeakThresholds(doc)...)
	warnings = append(warnings, checkReplacements(doc)...)
	warnings = append(warnings, checkFileSize(doc)...)
	return warnings
}

// checkDuplicateTypes reports each entity type that appears more than
// once, exactly once per type regardless of how often it repeats.
func checkDuplicateTypes(doc *document.PolicyDocument) []string {
	counts := make(map[string]int)
	for _, e := range doc.Entities {
		counts[e.Type]++
	}

	var warnings []string
	reported := make(map[string]bool)
	for _, e := range doc.Entities {
		if counts[e.Type] > 1 && !reported[e.Type] {
			reported[e.Type] = true
			warnings = append(warnings,
				fmt.Sprintf("entity type %s appears %d times; later rules shadow earlier ones", e.Type, counts[e.Type]))
		}
	}
	return warnings
}

// checkWeakThresholds reports every entity whose confidence threshold is
// low enough to produce noisy detections.
func checkWeakThresholds(doc *document.PolicyDocument) []string {
	var warnings []string
	for _, e := range doc.Entities {
		if e.ConfidenceThreshold < weakThreshold {
			warnings = append(warnings,
				fmt.Sprintf("entity type %s has a low confidence threshold (%.2f); thresholds below %.1f produce noisy detections",
					e.Type, e.ConfidenceThreshold, weakThreshold))
		}
	}
	return warnings
}

// checkReplacements re-checks the replace/replacement pairing. The schema
// layer already rejects this; the check stays here so a document built in
// memory and handed straight to the business layer is still covered.
func checkReplacements(doc *document.PolicyDocument) []string {
	var warnings []string
	for _, e := range doc.Entities {
		if e.Action == string(catalog.ActionReplace) && e.Replacement == "" {
			warnings = append(warnings,
				fmt.Sprintf("entity type %s uses action replace without a replacement value", e.Type))
		}
	}
	return warnings
}

// checkFileSize re-runs the size-spec semantic check shared with the
// schema layer.
func checkFileSize(doc *document.PolicyDocument) []string {
	if _, ok := document.ParseSizeSpec(doc.Scope.MaxFileSize); !ok {
		return []string{fmt.Sprintf("scope.max_file_size %q is not a usable size specification", doc.Scope.MaxFileSize)}
	}
	return nil
}
