package entitle

import (
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/types"
)

// Re-export common types so callers rarely need the leaf packages.

// Money is re-exported from types package.
type Money = types.Money

// Plan is re-exported from plan package.
type Plan = plan.Plan

// View is re-exported from entitlement package.
type View = entitlement.View

// Settings is re-exported from entitlement package.
type Settings = entitlement.Settings

var (
	RUB  = types.RUB
	USD  = types.USD
	Zero = types.Zero
)

// DefaultSettings is re-exported from entitlement package.
var DefaultSettings = entitlement.DefaultSettings
