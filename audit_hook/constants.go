package audithook

// Action constants for audit events.
const (
	// Subject actions
	ActionSubjectCreated  = "subject.created"
	ActionSettingsUpdated = "settings.updated"

	// Subscription actions
	ActionSubscriptionUpgraded = "subscription.upgraded"
	ActionSubscriptionExpired  = "subscription.expired"
	ActionCycleReset           = "cycle.reset"

	// Usage actions
	ActionUsageConsumed = "usage.consumed"
	ActionQuotaExceeded = "quota.exceeded"
	ActionRateLimited   = "rate.limited"

	// Generation actions
	ActionGenerationFailed = "generation.failed"
)

// Resource constants for audit events.
const (
	ResourceSubject      = "subject"
	ResourceSubscription = "subscription"
	ResourceUsage        = "usage"
	ResourceGeneration   = "generation"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryUsage        = "usage"
	CategoryAccess       = "access"
	CategoryIntegration  = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
