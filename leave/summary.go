package leave

import (
	"time"

	"github.com/warp/leave-ledger/generic"
)

// MonthSummary is one row of the month-by-month breakdown.
//
// Conservation: Unused == Available - Valid (never negative), and the
// next month's CarryIn equals this month's Unused.
type MonthSummary struct {
	Month        time.Month
	CarryIn      int
	MonthlyQuota int
	Available    int
	Taken        int
	Valid        int
	LOP          int
	Unused       int
}

// YearlySummary is the derived per member+year aggregate. Never persisted.
type YearlySummary struct {
	MemberID generic.MemberID
	Year     int
	Mode     Mode
	// AsOf is the day CarryForward was evaluated for, or empty for year end.
	AsOf string

	TotalTaken   int
	ValidLeaves  int
	LOPDays      int
	Remaining    int
	CarryForward int

	Months []MonthSummary
}

// Month returns the breakdown row for m.
func (s YearlySummary) Month(m time.Month) MonthSummary {
	if int(m) < 1 || int(m) > len(s.Months) {
		return MonthSummary{Month: m}
	}
	return s.Months[m-1]
}
