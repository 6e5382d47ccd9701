// Package leave implements the leave entitlement rules: paid vs Loss-of-Pay
// classification, monthly carry-forward and the service that keeps stored
// flags in sync with them.
package leave

import "fmt"

// =============================================================================
// LEAVE POLICY
// =============================================================================

// Mode selects the rule that decides whether a day is paid.
type Mode string

const (
	// ModeMonthlyCarryForward grants MonthlyQuota days per month and rolls
	// unused allowance into the next month of the same year.
	ModeMonthlyCarryForward Mode = "monthly_carry_forward"

	// ModeYearlyCounter marks the first YearlyQuota days of the year as paid
	// regardless of month. Superseded by ModeMonthlyCarryForward; kept so
	// deployments that still rely on the old rule can opt in explicitly.
	ModeYearlyCounter Mode = "yearly_counter"
)

const (
	DefaultMonthlyQuota = 1
	DefaultYearlyQuota  = 12
)

// Policy holds the quota constants for classification.
//
// Zero or negative quotas are accepted. They classify every day as LOP.
type Policy struct {
	ID           string
	Name         string
	Mode         Mode
	MonthlyQuota int
	YearlyQuota  int
}

// DefaultPolicy returns 1 day per month with carry-forward, 12 per year.
func DefaultPolicy() Policy {
	return Policy{
		ID:           "default",
		Name:         "Monthly leave with carry-forward",
		Mode:         ModeMonthlyCarryForward,
		MonthlyQuota: DefaultMonthlyQuota,
		YearlyQuota:  DefaultYearlyQuota,
	}
}

// ParseMode validates a mode string. Empty selects the monthly rule.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMonthlyCarryForward:
		return ModeMonthlyCarryForward, nil
	case ModeYearlyCounter:
		return ModeYearlyCounter, nil
	default:
		return "", fmt.Errorf("unknown leave mode %q", s)
	}
}

func (p Policy) mode() Mode {
	if p.Mode == "" {
		return ModeMonthlyCarryForward
	}
	return p.Mode
}
