package entitytypes

// Status describes whether a registered entity type accepts writes.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// OriginCore marks definitions owned by the engine itself. Core types are
// protected: their IDs cannot be overridden or deprecated by extensions.
const OriginCore = "core"

// PropertyType constrains the value type of a schema property.
type PropertyType string

const (
	PropertyString  PropertyType = "string"
	PropertyNumber  PropertyType = "number"
	PropertyBoolean PropertyType = "boolean"
	PropertyObject  PropertyType = "object"
	PropertyArray   PropertyType = "array"
)

// Definition describes a governed entity type: who registered it, whether it
// still accepts writes, and the properties every instance must carry.
// Every property named in Schema is required on write.
type Definition struct {
	ID              string                  `json:"id"`
	Label           string                  `json:"label"`
	RegisteredBy    string                  `json:"registered_by"`
	Status          Status                  `json:"status"`
	Schema          map[string]PropertyType `json:"schema,omitempty"`
	VisibilityRules []string                `json:"visibility_rules,omitempty"`
}
