package generic

import "time"

// =============================================================================
// PERIOD - The boundary a leave year is evaluated in
// =============================================================================

// Period is an inclusive [Start, End] range of days.
//
// Leave classification always runs over one calendar year. Carry-forward
// never crosses the End of a period.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// CalendarYear returns Jan 1 - Dec 31 of year.
func CalendarYear(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

// MonthPeriod returns the first to the last day of the month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Months returns the first day of every month touched by the period.
func (p Period) Months() []TimePoint {
	var months []TimePoint
	current := StartOfMonth(p.Start.Year(), p.Start.Month())
	for current.BeforeOrEqual(p.End) {
		months = append(months, current)
		current = current.AddMonths(1)
	}
	return months
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
