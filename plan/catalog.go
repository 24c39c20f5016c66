package plan

import "github.com/xraph/entitle/types"

// DefaultCatalog returns the tiers used when configuration does not supply
// its own catalog.
func DefaultCatalog() []Plan {
	return []Plan{
		{
			ID:          FreeID,
			Name:        "Free",
			MaxChars:    2000,
			MaxRequests: 15,
			Price:       types.Zero("rub"),
			Term:        TermPerpetual,
			Modes:       []Mode{ModeSimple, ModeShort},
		},
		{
			ID:          "go",
			Name:        "Go",
			MaxChars:    5000,
			MaxRequests: 100,
			Price:       types.RUB(19900),
			Term:        TermMonthly,
			Modes:       []Mode{ModeSimple, ModeShort, ModeKeyPoints},
		},
		{
			ID:                "go_pro",
			Name:              "Go Pro",
			MaxChars:          10000,
			MaxRequests:       500,
			AISettingsEnabled: true,
			Price:             types.RUB(49900),
			Term:              TermMonthly,
		},
		{
			ID:                "go_pro_plus",
			Name:              "Go Pro+",
			MaxChars:          10000,
			MaxRequests:       500,
			AISettingsEnabled: true,
			Price:             types.RUB(399000),
			Term:              TermAnnual,
		},
		{
			ID:                "lifetime",
			Name:              "Lifetime",
			MaxChars:          20000,
			MaxRequests:       1000,
			AISettingsEnabled: true,
			Price:             types.RUB(999000),
			Term:              TermPerpetual,
		},
	}
}

// DefaultRegistry builds a Registry from DefaultCatalog.
func DefaultRegistry() *Registry {
	return MustRegistry(DefaultCatalog()...)
}
