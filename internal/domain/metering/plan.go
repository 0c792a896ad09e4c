package metering

import "github.com/shopspring/decimal"

// UnlimitedUsage is the sentinel limit value meaning no cap is enforced.
const UnlimitedUsage int64 = -1

// Plan represents a subscription plan tier
type Plan string

const (
	// PlanFree is the default tier for new tenants
	PlanFree Plan = "free"

	// PlanPersonal is the entry-level paid tier
	PlanPersonal Plan = "personal"

	// PlanPro is the team tier
	PlanPro Plan = "pro"

	// PlanEnterprise has no usage caps
	PlanEnterprise Plan = "enterprise"
)

// String returns the string representation of Plan
func (p Plan) String() string {
	return string(p)
}

// IsKnown returns true if the plan is one of the defined tiers.
// Unknown plans are not an error anywhere in this package; limit
// lookups fall back to the free tier instead.
func (p Plan) IsKnown() bool {
	switch p {
	case PlanFree, PlanPersonal, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the plan
func (p Plan) DisplayName() string {
	switch p {
	case PlanFree:
		return "Free"
	case PlanPersonal:
		return "Personal"
	case PlanPro:
		return "Pro"
	case PlanEnterprise:
		return "Enterprise"
	default:
		return string(p)
	}
}

// AllPlans returns all defined plans ordered from lowest to highest tier
func AllPlans() []Plan {
	return []Plan{PlanFree, PlanPersonal, PlanPro, PlanEnterprise}
}

// PlanSpec describes a subscription plan: its pricing and the monthly
// usage limit for every metered resource kind
type PlanSpec struct {
	Plan         Plan
	DisplayName  string
	MonthlyPrice decimal.Decimal
	Limits       map[ResourceKind]int64
}

// IsUnlimited returns true if the plan has no cap for the given kind
func (s PlanSpec) IsUnlimited(kind ResourceKind) bool {
	return s.Limits[kind] == UnlimitedUsage
}

// planCatalog is the static plan table shared by the whole process.
// It is never mutated after init; accessors hand out copies.
var planCatalog = map[Plan]PlanSpec{
	PlanFree: {
		Plan:         PlanFree,
		DisplayName:  "Free",
		MonthlyPrice: decimal.Zero,
		Limits: map[ResourceKind]int64{
			ResourceKindAnalysis:   5,
			ResourceKindGeneration: 2,
			ResourceKindOCR:        10,
		},
	},
	PlanPersonal: {
		Plan:         PlanPersonal,
		DisplayName:  "Personal",
		MonthlyPrice: decimal.NewFromInt(9),
		Limits: map[ResourceKind]int64{
			ResourceKindAnalysis:   50,
			ResourceKindGeneration: 20,
			ResourceKindOCR:        100,
		},
	},
	PlanPro: {
		Plan:         PlanPro,
		DisplayName:  "Pro",
		MonthlyPrice: decimal.NewFromInt(29),
		Limits: map[ResourceKind]int64{
			ResourceKindAnalysis:   200,
			ResourceKindGeneration: 100,
			ResourceKindOCR:        500,
		},
	},
	PlanEnterprise: {
		Plan:         PlanEnterprise,
		DisplayName:  "Enterprise",
		MonthlyPrice: decimal.NewFromInt(199),
		Limits: map[ResourceKind]int64{
			ResourceKindAnalysis:   UnlimitedUsage,
			ResourceKindGeneration: UnlimitedUsage,
			ResourceKindOCR:        UnlimitedUsage,
		},
	},
}

// SpecForPlan returns the catalog entry for a plan.
// Unknown plans resolve to the free tier entry.
func SpecForPlan(plan Plan) PlanSpec {
	spec, ok := planCatalog[plan]
	if !ok {
		spec = planCatalog[PlanFree]
	}
	// Copy the limits map so callers cannot mutate the catalog
	limits := make(map[ResourceKind]int64, len(spec.Limits))
	for kind, limit := range spec.Limits {
		limits[kind] = limit
	}
	spec.Limits = limits
	return spec
}

// LimitsForPlan returns the per-kind monthly limits for a plan.
// Unknown plans resolve to the free tier limits.
func LimitsForPlan(plan Plan) map[ResourceKind]int64 {
	return SpecForPlan(plan).Limits
}

// LimitForPlan returns the monthly limit for one resource kind under a plan.
// Unknown plans resolve to the free tier limit for that kind.
func LimitForPlan(plan Plan, kind ResourceKind) int64 {
	return SpecForPlan(plan).Limits[kind]
}
