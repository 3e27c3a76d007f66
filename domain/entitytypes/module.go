package entitytypes

import (
	"log/slog"

	"go.uber.org/fx"
)

// Module provides the entity type registry seeded with the core types.
var Module = fx.Module("entitytypes",
	fx.Provide(func(log *slog.Logger) *Registry {
		return NewRegistry(log, CoreDefinitions()...)
	}),
)

// CoreDefinitions returns the engine-owned entity types available in every
// deployment. Extensions register their own types at runtime.
func CoreDefinitions() []Definition {
	return []Definition{
		{
			ID:    "BrandKnowledge",
			Label: "Brand Knowledge",
			Schema: map[string]PropertyType{
				"content": PropertyString,
			},
		},
		{
			ID:    "ProductKnowledge",
			Label: "Product Knowledge",
			Schema: map[string]PropertyType{
				"content": PropertyString,
			},
		},
		{
			ID:    "OrganizationPolicy",
			Label: "Organization Policy",
			Schema: map[string]PropertyType{
				"content": PropertyString,
			},
		},
	}
}
