package config

import "strings"

// Plan identifies a subscription tier. The tier decides the monthly
// generation limit enforced by the quota ledger.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// UnlimitedQuota is the sentinel limit for plans without a cap.
const UnlimitedQuota = -1

// MonthlyPromptLimit returns the monthly generation cap for the plan.
func (p Plan) MonthlyPromptLimit() int {
	switch p {
	case PlanPremium:
		return 500
	case PlanEnterprise:
		return UnlimitedQuota
	default:
		return 50
	}
}

// ParsePlan normalizes a plan string; unknown values report ok=false.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(s))) {
	case PlanFree:
		return PlanFree, true
	case PlanPremium:
		return PlanPremium, true
	case PlanEnterprise:
		return PlanEnterprise, true
	}
	return PlanFree, false
}
