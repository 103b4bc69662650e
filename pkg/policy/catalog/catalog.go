// Package catalog is the single source of truth for the entity types,
// anonymization actions, and file extensions the policy engine supports.
// The schema validator, business-rule validator, and template expander all
// consult this table; none of them carries its own literal list.
package catalog

import "sort"

// EntityType is a category of detectable personal data.
type EntityType string

// Supported entity types.
const (
	EntityEmailAddress   EntityType = "EMAIL_ADDRESS"
	EntityPhoneNumber    EntityType = "PHONE_NUMBER"
	EntitySSN            EntityType = "SSN"
	EntityCreditCard     EntityType = "CREDIT_CARD"
	EntityPerson         EntityType = "PERSON"
	EntityDateTime       EntityType = "DATE_TIME"
	EntityURL            EntityType = "URL"
	EntityIPAddress      EntityType = "IP_ADDRESS"
	EntityLocation       EntityType = "LOCATION"
	EntityOrganization   EntityType = "ORGANIZATION"
	EntityDriverLicense  EntityType = "DRIVER_LICENSE"
	EntityPassport       EntityType = "PASSPORT"
	EntityBankAccount    EntityType = "BANK_ACCOUNT"
	EntityIBAN           EntityType = "IBAN"
	EntityMedicalLicense EntityType = "MEDICAL_LICENSE"
	EntityUKNHS          EntityType = "UK_NHS"
)

// Action is the anonymization operation applied when an entity type is
// detected.
type Action string

// Supported anonymization actions.
const (
	ActionRedact  Action = "redact"
	ActionMask    Action = "mask"
	ActionReplace Action = "replace"
	ActionEncrypt Action = "encrypt"
)

// Defaults used by the template expander when a template omits a value.
const (
	// DefaultConfidenceThreshold is applied to expanded template entities.
	DefaultConfidenceThreshold = 0.85

	// DefaultReplacementToken is used for replace actions that omit a
	// replacement value.
	DefaultReplacementToken = "[REDACTED]"

	// DefaultMaxFileSize is the scope default attached to expanded
	// templates.
	DefaultMaxFileSize = "100MB"
)

var entityTypes = map[EntityType]bool{
	EntityEmailAddress:   true,
	EntityPhoneNumber:    true,
	EntitySSN:            true,
	EntityCreditCard:     true,
	EntityPerson:         true,
	EntityDateTime:       true,
	EntityURL:            true,
	EntityIPAddress:      true,
	EntityLocation:       true,
	EntityOrganization:   true,
	EntityDriverLicense:  true,
	EntityPassport:       true,
	EntityBankAccount:    true,
	EntityIBAN:           true,
	EntityMedicalLicense: true,
	EntityUKNHS:          true,
}

var actions = map[Action]bool{
	ActionRedact:  true,
	ActionMask:    true,
	ActionReplace: true,
	ActionEncrypt: true,
}

var fileTypes = map[string]bool{
	"txt":  true,
	"csv":  true,
	"json": true,
	"xml":  true,
	"html": true,
	"md":   true,
	"pdf":  true,
	"docx": true,
	"xlsx": true,
	"pptx": true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"tiff": true,
	"bmp":  true,
}

// DefaultFileTypes is the scope default attached to expanded templates.
var DefaultFileTypes = []string{"txt", "csv", "pdf", "docx", "xlsx"}

// IsEntityType reports whether t is a supported entity type.
func IsEntityType(t string) bool {
	return entityTypes[EntityType(t)]
}

// IsAction reports whether a is a supported anonymization action.
func IsAction(a string) bool {
	return actions[Action(a)]
}

// IsFileType reports whether ext is a supported file extension.
func IsFileType(ext string) bool {
	return fileTypes[ext]
}

// EntityTypes returns all supported entity types in sorted order.
func EntityTypes() []string {
	return sortedKeys(entityTypes)
}

// Actions returns all supported actions in sorted order.
func Actions() []string {
	out := make([]string, 0, len(actions))
	for a := range actions {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

// FileTypes returns all supported file extensions in sorted order.
func FileTypes() []string {
	out := make([]string, 0, len(fileTypes))
	for t := range fileTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[EntityType]bool) []string {
	out := make([]string, 0, len(m))
	for t := range m {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
