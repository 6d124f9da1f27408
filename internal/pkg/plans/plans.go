package plans

import (
	"fmt"
	"strings"
)

// Internal subscription plans.
const (
	PlanFree            = "free"
	PlanSubscriberBasic = "subscriber-basic"
	PlanSubscriberPro   = "subscriber-pro"
)

// One-time purchase tiers.
const (
	TierStarter   = "starter"
	TierPlus      = "plus"
	TierUnlimited = "unlimited"
)

// UnknownPriceError reports a provider price id with no active mapping.
// It signals configuration drift and always names the offending id.
type UnknownPriceError struct {
	PriceID string
}

func (e *UnknownPriceError) Error() string {
	return fmt.Sprintf("unknown or unsupported price id %s", e.PriceID)
}

func NormalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanSubscriberBasic:
		return PlanSubscriberBasic
	case PlanSubscriberPro:
		return PlanSubscriberPro
	default:
		return PlanFree
	}
}

func PlanRank(plan string) int {
	switch NormalizePlan(plan) {
	case PlanSubscriberPro:
		return 2
	case PlanSubscriberBasic:
		return 1
	default:
		return 0
	}
}

// IsEntitlingStatus reports whether a provider subscription status still
// grants access to the plan's features.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}
