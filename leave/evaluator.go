/*
evaluator.go - Leave Ledger Evaluator (paid vs Loss-of-Pay classification)

PURPOSE:
  Given all of a member's leave days for one calendar year, decide which
  days are paid (valid) and which are Loss of Pay, and derive the yearly
  summary. Pure: no I/O, no clock, no shared state.

ALGORITHM (ModeMonthlyCarryForward):
  1. Stable sort by date (ties keep input order)
  2. carry = 0
  3. For each month m = 1..12:
       available = MonthlyQuota + carry
       first `available` days of the month are valid, the rest LOP
       valid     = clamp(min(taken, available), 0)
       carry     = max(0, available - valid)
  4. remaining = max(0, YearlyQuota - valid days)

  The yearly quota is a reporting figure. It never caps classification.

EXAMPLE:
  Jan: 0 days   available 1, unused 1
  Feb: 2 days   available 2, both valid, unused 0
  Mar: 2 days   available 1, first valid, second LOP

ALGORITHM (ModeYearlyCounter, superseded):
  The first YearlyQuota days of the year are valid, every later day is LOP.
  The month rows report the remaining yearly allowance as CarryIn.

YEAR ISOLATION:
  ClassifyYear ignores events outside Input.Year, so carry-forward never
  crosses a year boundary. The ledger loads one (member, year) at a time.

SEE ALSO:
  - ledger.go: Loads, classifies and persists
  - policy.go: Quota constants
*/
package leave

import (
	"sort"

	"github.com/warp/leave-ledger/generic"
)

// Input is an immutable snapshot of one member-year.
type Input struct {
	MemberID generic.MemberID
	Year     int
	Events   []generic.LeaveEvent
	Policy   Policy

	// AsOf picks the month whose carry-in is reported as the current
	// carry-forward balance. Zero means the end of the year.
	AsOf generic.TimePoint
}

// Result is the classification of one member-year.
type Result struct {
	// Events sorted by date with IsLOP recomputed.
	Events []generic.LeaveEvent

	// Changes lists every event whose recomputed flag differs from the input.
	Changes []generic.FlagUpdate

	Summary YearlySummary
}

// Flag returns the recomputed flag for id.
func (r Result) Flag(id generic.EventID) (isLOP bool, ok bool) {
	for _, ev := range r.Events {
		if ev.ID == id {
			return ev.IsLOP, true
		}
	}
	return false, false
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ClassifyYear classifies every event of in.Year. Events of other years are
// not part of the result.
func ClassifyYear(in Input) Result {
	period := generic.CalendarYear(in.Year)
	events := make([]generic.LeaveEvent, 0, len(in.Events))
	for _, ev := range in.Events {
		if period.Contains(ev.Date) {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})

	var byMonth [12][]int
	for i, ev := range events {
		m := ev.Date.Month() - 1
		byMonth[m] = append(byMonth[m], i)
	}

	flags := make([]bool, len(events))
	var months []MonthSummary
	switch in.Policy.mode() {
	case ModeYearlyCounter:
		months = classifyYearlyCounter(in.Policy, period, byMonth, flags)
	default:
		months = classifyMonthly(in.Policy, period, byMonth, flags)
	}

	result := Result{Events: events}
	valid := 0
	for i := range events {
		if events[i].IsLOP != flags[i] {
			result.Changes = append(result.Changes, generic.FlagUpdate{EventID: events[i].ID, IsLOP: flags[i]})
		}
		events[i].IsLOP = flags[i]
		if !flags[i] {
			valid++
		}
	}

	result.Summary = YearlySummary{
		MemberID:     in.MemberID,
		Year:         in.Year,
		Mode:         in.Policy.mode(),
		TotalTaken:   len(events),
		ValidLeaves:  valid,
		LOPDays:      len(events) - valid,
		Remaining:    max(0, in.Policy.YearlyQuota-valid),
		CarryForward: carryForwardAsOf(in.Year, in.AsOf, months),
		Months:       months,
	}
	if !in.AsOf.IsZero() {
		result.Summary.AsOf = in.AsOf.String()
	}
	return result
}

// classifyMonthly applies the monthly quota + carry-forward chain.
func classifyMonthly(p Policy, year generic.Period, byMonth [12][]int, flags []bool) []MonthSummary {
	months := make([]MonthSummary, 12)
	carry := 0
	for m, start := range year.Months() {
		idx := byMonth[m]
		available := p.MonthlyQuota + carry
		valid := max(0, min(len(idx), available))
		for k, i := range idx {
			flags[i] = k >= valid
		}
		unused := max(0, available-valid)

		months[m] = MonthSummary{
			Month:        start.Month(),
			CarryIn:      carry,
			MonthlyQuota: p.MonthlyQuota,
			Available:    available,
			Taken:        len(idx),
			Valid:        valid,
			LOP:          len(idx) - valid,
			Unused:       unused,
		}
		carry = unused
	}
	return months
}

// classifyYearlyCounter counts valid days against the yearly quota only.
func classifyYearlyCounter(p Policy, year generic.Period, byMonth [12][]int, flags []bool) []MonthSummary {
	months := make([]MonthSummary, 12)
	left := max(0, p.YearlyQuota)
	for m, start := range year.Months() {
		idx := byMonth[m]
		valid := min(len(idx), left)
		for k, i := range idx {
			flags[i] = k >= valid
		}
		months[m] = MonthSummary{
			Month:     start.Month(),
			CarryIn:   left,
			Available: left,
			Taken:     len(idx),
			Valid:     valid,
			LOP:       len(idx) - valid,
			Unused:    left - valid,
		}
		left -= valid
	}
	return months
}

func carryForwardAsOf(year int, asOf generic.TimePoint, months []MonthSummary) int {
	switch {
	case asOf.IsZero() || asOf.Year() > year:
		return months[11].Unused
	case asOf.Year() < year:
		return 0
	default:
		return months[asOf.Month()-1].CarryIn
	}
}
