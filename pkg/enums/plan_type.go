package enums

// PlanType names a subscription tier. The wire values match the ones the
// front desk already stores on plans.
type PlanType string

const (
	PlanTypeOneMonth    PlanType = "oneMonth"
	PlanTypeThreeMonths PlanType = "threeMonths"
	PlanTypeSixMonths   PlanType = "sixMonths"
	PlanTypeOneYear     PlanType = "oneYear"
)

// DefaultPlanMonths applies to any plan type missing from planDurations.
const DefaultPlanMonths = 1

var planDurations = map[PlanType]int{
	PlanTypeOneMonth:    1,
	PlanTypeThreeMonths: 3,
	PlanTypeSixMonths:   6,
	PlanTypeOneYear:     12,
}

var validPlanTypes = []PlanType{
	PlanTypeOneMonth,
	PlanTypeThreeMonths,
	PlanTypeSixMonths,
	PlanTypeOneYear,
}

func (p PlanType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanType.
func (p PlanType) IsValid() bool {
	_, ok := planDurations[p]
	return ok
}

// Months returns the inferred duration for the plan type.
func (p PlanType) Months() int {
	if months, ok := planDurations[p]; ok {
		return months
	}
	return DefaultPlanMonths
}

// ParsePlanType converts raw input into a PlanType.
func ParsePlanType(value string) (PlanType, error) {
	return parse("plan type", validPlanTypes, value)
}
