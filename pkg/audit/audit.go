// Package audit records policy lifecycle events. The engine emits exactly
// one event per successful create, update, or delete; it confirms the
// sink accepted the event but does not otherwise depend on its outcome.
package audit

import "context"

// Action is the lifecycle operation an event records.
type Action string

// Recorded actions.
const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Event is a single audit record.
type Event struct {
	// ActorID identifies who performed the operation.
	ActorID string `json:"actor_id"`

	// Action is the lifecycle operation.
	Action Action `json:"action"`

	// ResourceType names the resource kind, "Policy" for this engine.
	ResourceType string `json:"resource_type"`

	// ResourceID is the affected resource's id.
	ResourceID string `json:"resource_id"`

	// Details carries operation-specific context (version labels,
	// renames).
	Details map[string]string `json:"details,omitempty"`
}

// Sink accepts audit events. Record returns once the event has been
// accepted; implementations decide durability.
type Sink interface {
	Record(ctx context.Context, event Event) error
}
