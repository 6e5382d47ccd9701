/*
Package generic provides the storage-facing primitives of the leave ledger.

PURPOSE:
  This package contains the types that cross the boundary between the
  classification engine and persistence: leave events, members, flag
  updates and the store interfaces. It knows nothing about quotas or
  carry-forward; that lives in package leave.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveEvent: One day of absence for one member
  - FlagUpdate: A recomputed paid/LOP flag to write back
  - Member: The employee a leave event belongs to
  - MemberYear: The unit of classification (member + calendar year)

DESIGN PRINCIPLES:
  1. One event = one day: the store enforces (MemberID, Date) uniqueness
  2. Derived fields: Year and Month always come from Date
  3. IsLOP is never a freestanding fact; it is recomputed whenever the
     member's year changes
  4. Precision: salaries use decimal.Decimal to avoid floating-point errors

USAGE:
  date, err := generic.ParseDate("2024-01-10")
  ev := generic.NewLeaveEvent("42", date)
  // ev.Year == 2024, ev.Month == time.January

SEE ALSO:
  - store.go: Persistence interfaces
  - errors.go: Sentinel and structured errors
  - leave/evaluator.go: Computes IsLOP
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID string
type EventID string

// =============================================================================
// LEAVE EVENT - One day of absence
// =============================================================================

type LeaveStatus string

const (
	StatusValid LeaveStatus = "Valid"
	StatusLOP   LeaveStatus = "LOP"
)

type LeaveEvent struct {
	ID        EventID
	MemberID  MemberID
	Date      TimePoint
	Year      int
	Month     time.Month
	IsLOP     bool
	CreatedAt time.Time
}

// NewLeaveEvent builds an unsaved event with Year and Month derived from date.
func NewLeaveEvent(memberID MemberID, date TimePoint) LeaveEvent {
	return LeaveEvent{
		MemberID: memberID,
		Date:     date,
		Year:     date.Year(),
		Month:    date.Month(),
	}
}

// Status returns the display status stored alongside the flag.
func (e LeaveEvent) Status() LeaveStatus {
	if e.IsLOP {
		return StatusLOP
	}
	return StatusValid
}

// Key returns the classification unit this event belongs to.
func (e LeaveEvent) Key() MemberYear {
	return MemberYear{MemberID: e.MemberID, Year: e.Year}
}

// FlagUpdate is a single recomputed flag to persist.
type FlagUpdate struct {
	EventID EventID
	IsLOP   bool
}

// MemberYear identifies one independently classified leave year.
type MemberYear struct {
	MemberID MemberID
	Year     int
}

// =============================================================================
// MEMBER - Owner of leave events
// =============================================================================

type MemberStatus string

const (
	MemberActive   MemberStatus = "Active"
	MemberInactive MemberStatus = "Inactive"
	MemberOnLeave  MemberStatus = "On Leave"
)

type Member struct {
	ID         MemberID
	Name       string
	Email      string
	Position   string
	Department string
	DateJoined TimePoint
	// Salary is the monthly gross used for LOP deductions. Zero means unknown.
	Salary    decimal.Decimal
	Status    MemberStatus
	CreatedAt time.Time
}
