/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names follow
  the existing HR frontend (member_id, leave_date, is_lop, status).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers run them
  before calling the ledger. Date parsing stays in the ledger so the
  InvalidDate rules live in one place.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Position   string `json:"position"`
	Department string `json:"department,omitempty"`
	DateJoined string `json:"date_joined,omitempty"`
	Salary     string `json:"salary"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateMemberRequest is the request to create or update a member.
type CreateMemberRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"omitempty,email"`
	Position   string `json:"position" validate:"required,max=255"`
	Department string `json:"department" validate:"max=255"`
	DateJoined string `json:"date_joined" validate:"omitempty,datetime=2006-01-02"`
	Salary     string `json:"salary" validate:"omitempty,numeric"`
	Status     string `json:"status" validate:"omitempty,oneof=Active Inactive 'On Leave'"`
}

func toMemberDTO(m generic.Member) MemberDTO {
	dto := MemberDTO{
		ID:         string(m.ID),
		Name:       m.Name,
		Email:      m.Email,
		Position:   m.Position,
		Department: m.Department,
		Salary:     m.Salary.StringFixed(2),
		Status:     string(m.Status),
	}
	if !m.DateJoined.IsZero() {
		dto.DateJoined = m.DateJoined.String()
	}
	if !m.CreatedAt.IsZero() {
		dto.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// LEAVES
// =============================================================================

// RecordLeaveRequest is the body of POST /api/leaves.
type RecordLeaveRequest struct {
	MemberID  string `json:"member_id" validate:"required"`
	LeaveDate string `json:"leave_date" validate:"required"`
	Year      *int   `json:"year,omitempty"`
}

// LeaveDTO is one stored leave day.
type LeaveDTO struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	LeaveDate string `json:"leave_date"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	IsLOP     bool   `json:"is_lop"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toLeaveDTO(ev generic.LeaveEvent) LeaveDTO {
	dto := LeaveDTO{
		ID:        string(ev.ID),
		MemberID:  string(ev.MemberID),
		LeaveDate: ev.Date.String(),
		Year:      ev.Year,
		Month:     int(ev.Month),
		IsLOP:     ev.IsLOP,
		Status:    string(ev.Status()),
	}
	if !ev.CreatedAt.IsZero() {
		dto.CreatedAt = ev.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// RecordLeaveResponse is returned after a leave is recorded.
type RecordLeaveResponse struct {
	Message string     `json:"message"`
	Leave   LeaveDTO   `json:"leave"`
	IsLOP   bool       `json:"is_lop"`
	Summary SummaryDTO `json:"summary"`
}

// DeleteLeaveResponse is returned after a leave is deleted.
type DeleteLeaveResponse struct {
	Message string     `json:"message"`
	Summary SummaryDTO `json:"summary"`
}

// =============================================================================
// SUMMARY
// =============================================================================

// SummaryDTO is the yearly leave summary.
type SummaryDTO struct {
	MemberID     string            `json:"member_id"`
	Year         int               `json:"year"`
	Mode         string            `json:"mode"`
	AsOf         string            `json:"as_of,omitempty"`
	TotalTaken   int               `json:"total_leaves"`
	ValidLeaves  int               `json:"valid_leaves"`
	LOPDays      int               `json:"lop_days"`
	Remaining    int               `json:"remaining_leaves"`
	CarryForward int               `json:"carry_forward"`
	Months       []MonthSummaryDTO `json:"months"`
}

// MonthSummaryDTO is one row of the monthly breakdown.
type MonthSummaryDTO struct {
	Month     int `json:"month"`
	CarryIn   int `json:"carry_in"`
	Quota     int `json:"monthly_quota"`
	Available int `json:"available"`
	Taken     int `json:"taken"`
	Valid     int `json:"valid"`
	LOP       int `json:"lop"`
	Unused    int `json:"unused"`
}

func toSummaryDTO(s leave.YearlySummary) SummaryDTO {
	dto := SummaryDTO{
		MemberID:     string(s.MemberID),
		Year:         s.Year,
		Mode:         string(s.Mode),
		AsOf:         s.AsOf,
		TotalTaken:   s.TotalTaken,
		ValidLeaves:  s.ValidLeaves,
		LOPDays:      s.LOPDays,
		Remaining:    s.Remaining,
		CarryForward: s.CarryForward,
		Months:       make([]MonthSummaryDTO, len(s.Months)),
	}
	for i, m := range s.Months {
		dto.Months[i] = MonthSummaryDTO{
			Month:     int(m.Month),
			CarryIn:   m.CarryIn,
			Quota:     m.MonthlyQuota,
			Available: m.Available,
			Taken:     m.Taken,
			Valid:     m.Valid,
			LOP:       m.LOP,
			Unused:    m.Unused,
		}
	}
	return dto
}

// ReclassifyResponse reports a manual reclassification.
type ReclassifyResponse struct {
	Changed int        `json:"changed"`
	Leaves  []LeaveDTO `json:"leaves"`
	Summary SummaryDTO `json:"summary"`
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

// DeductionsDTO is the LOP payroll view for one member-year.
type DeductionsDTO struct {
	MemberID      string              `json:"member_id"`
	Year          int                 `json:"year"`
	MonthlySalary string              `json:"monthly_salary"`
	LOPDays       int                 `json:"lop_days"`
	Total         string              `json:"total_deduction"`
	Months        []MonthDeductionDTO `json:"months"`
}

// MonthDeductionDTO is one month of deductions.
type MonthDeductionDTO struct {
	Month     int    `json:"month"`
	LOPDays   int    `json:"lop_days"`
	DailyRate string `json:"daily_rate"`
	Amount    string `json:"amount"`
}

func toDeductionsDTO(d leave.Deductions) DeductionsDTO {
	dto := DeductionsDTO{
		MemberID:      string(d.MemberID),
		Year:          d.Year,
		MonthlySalary: money(d.MonthlySalary),
		LOPDays:       d.LOPDays,
		Total:         money(d.Total),
		Months:        make([]MonthDeductionDTO, len(d.Months)),
	}
	for i, m := range d.Months {
		dto.Months[i] = MonthDeductionDTO{
			Month:     int(m.Month),
			LOPDays:   m.LOPDays,
			DailyRate: money(m.DailyRate),
			Amount:    money(m.Amount),
		}
	}
	return dto
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// MISC
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
	Year       int    `json:"year,omitempty"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
