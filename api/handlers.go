/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave ledger via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every rule to leave.Ledger. No
  classification happens here.

ENDPOINTS:
  Members:
    GET    /api/members                       List members
    POST   /api/members                       Create or update member
    GET    /api/members/{id}                  Get member
    DELETE /api/members/{id}                  Delete member and their leaves

  Leaves:
    GET    /api/leaves/{memberId}?year=       Leave days of a year
    POST   /api/leaves                        Record a leave day
    DELETE /api/leaves/{id}                   Delete a leave day
    GET    /api/leaves/{memberId}/summary     Yearly summary
    POST   /api/leaves/{memberId}/reclassify  Rerun classification
    GET    /api/leaves/{memberId}/deductions  LOP salary deductions

  Policy:
    GET    /api/policy                        Active policy

  Other:
    GET    /api/health                        Liveness (+ database ping)
    GET    /api/scenarios                     See scenarios.go

  year defaults to the current year.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid date or year
  - 404: Member or leave not found
  - 409: Leave already recorded for that day
  - 501: Data source lacks members (deductions)
  - 503: Health check cannot reach the database
  - 500: Internal errors, including failed write-backs (safe to retry)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger        *leave.Ledger
	Members       generic.MemberStore // nil disables member endpoints
	PolicyFactory *factory.PolicyFactory

	// reset clears the data source before a scenario load; nil disables it.
	reset func(ctx context.Context) error
	ping  func(ctx context.Context) error

	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMembers enables the member endpoints.
func WithMembers(m generic.MemberStore) HandlerOption {
	return func(h *Handler) { h.Members = m }
}

// WithResetter enables scenario loading on a store that can be wiped.
func WithResetter(r Resetter) HandlerOption {
	return func(h *Handler) { h.reset = r.Reset }
}

// Pinger reports whether the data source is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WithPinger makes Health check the data source.
func WithPinger(p Pinger) HandlerOption {
	return func(h *Handler) { h.ping = p.Ping }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithHandlerClock sets the clock used for the default year.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a new handler around ledger.
func NewHandler(ledger *leave.Ledger, opts ...HandlerOption) *Handler {
	h := &Handler{
		Ledger:        ledger,
		PolicyFactory: factory.NewPolicyFactory(),
		validate:      newValidator(),
		logger:        zap.L().Named("api"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health reports liveness and, when a Pinger is set, database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status": "ok",
		"time":   h.now().UTC().Format(time.RFC3339),
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check: database unreachable", zap.Error(err))
			body["status"] = "degraded"
			body["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, body)
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if !h.requireMembers(w) {
		return
	}
	members, err := h.Members.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	if !h.requireMembers(w) {
		return
	}
	id := generic.MemberID(chi.URLParam(r, "id"))

	m, err := h.Members.GetMember(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, "Failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// CreateMember creates or updates a member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	if !h.requireMembers(w) {
		return
	}
	var req CreateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	m := generic.Member{
		ID:         generic.MemberID(req.ID),
		Name:       req.Name,
		Email:      req.Email,
		Position:   req.Position,
		Department: req.Department,
		Status:     generic.MemberStatus(req.Status),
		Salary:     decimal.Zero,
	}
	if req.DateJoined != "" {
		joined, err := generic.ParseDate(req.DateJoined)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date_joined format (use YYYY-MM-DD)", err)
			return
		}
		m.DateJoined = joined
	}
	if req.Salary != "" {
		salary, err := decimal.NewFromString(req.Salary)
		if err != nil || salary.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid salary", err)
			return
		}
		m.Salary = salary
	}

	saved, err := h.Members.SaveMember(r.Context(), m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(saved))
}

// DeleteMember removes a member along with every leave they recorded.
// DELETE /api/members/{id}
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if !h.requireMembers(w) {
		return
	}
	id := generic.MemberID(chi.URLParam(r, "id"))

	if err := h.Ledger.DeleteMember(r.Context(), id); err != nil {
		h.writeLedgerError(w, "Failed to delete member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Member deleted successfully"})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaves returns the member's leave days of a year.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	memberID := memberParam(r)
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}

	events, err := h.Ledger.ListLeaves(r.Context(), memberID, year)
	if err != nil {
		h.writeLedgerError(w, "Failed to list leaves", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(events))
}

// RecordLeave records one leave day and returns its classification.
func (h *Handler) RecordLeave(w http.ResponseWriter, r *http.Request) {
	var req RecordLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Ledger.RecordLeave(r.Context(), generic.MemberID(req.MemberID), req.LeaveDate, req.Year)
	if err != nil {
		h.writeLedgerError(w, "Failed to record leave", err)
		return
	}

	msg := "Leave recorded successfully"
	if res.IsLOP {
		msg = "Leave recorded as Loss of Pay"
	}
	writeJSON(w, http.StatusCreated, RecordLeaveResponse{
		Message: msg,
		Leave:   toLeaveDTO(res.Event),
		IsLOP:   res.IsLOP,
		Summary: toSummaryDTO(res.Summary),
	})
}

// DeleteLeave deletes one leave day.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id := generic.EventID(chi.URLParam(r, "id"))

	summary, err := h.Ledger.DeleteLeave(r.Context(), id)
	if err != nil {
		h.writeLedgerError(w, "Failed to delete leave", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteLeaveResponse{
		Message: "Leave deleted successfully",
		Summary: toSummaryDTO(summary),
	})
}

// GetSummary returns the yearly summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	memberID := memberParam(r)
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}

	summary, err := h.Ledger.GetSummary(r.Context(), memberID, year)
	if err != nil {
		h.writeLedgerError(w, "Failed to get leave summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// Reclassify reruns classification for a member-year and persists drift.
func (h *Handler) Reclassify(w http.ResponseWriter, r *http.Request) {
	memberID := memberParam(r)
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}

	result, err := h.Ledger.Reclassify(r.Context(), memberID, year)
	if err != nil {
		h.writeLedgerError(w, "Failed to reclassify leaves", err)
		return
	}
	writeJSON(w, http.StatusOK, ReclassifyResponse{
		Changed: len(result.Changes),
		Leaves:  toLeaveDTOs(result.Events),
		Summary: toSummaryDTO(result.Summary),
	})
}

// GetDeductions returns LOP salary deductions.
func (h *Handler) GetDeductions(w http.ResponseWriter, r *http.Request) {
	memberID := memberParam(r)
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}

	d, err := h.Ledger.Deductions(r.Context(), memberID, year)
	if err != nil {
		h.writeLedgerError(w, "Failed to compute deductions", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeductionsDTO(d))
}

// GetPolicy returns the active policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(h.Ledger.Policy()))
}

// =============================================================================
// HELPERS
// =============================================================================

func memberParam(r *http.Request) generic.MemberID {
	return generic.MemberID(chi.URLParam(r, "id"))
}

func (h *Handler) requireMembers(w http.ResponseWriter) bool {
	if h.Members == nil {
		writeError(w, http.StatusNotImplemented, "Data source has no member roster", nil)
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return false
	}
	return true
}

// yearParam reads ?year=, defaulting to the current year.
func (h *Handler) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, false
	}
	return year, true
}

// writeLedgerError maps ledger errors onto HTTP statuses.
func (h *Handler) writeLedgerError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, generic.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrDuplicateLeaveDay):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, generic.ErrStoreRequired):
		writeError(w, http.StatusNotImplemented, message, err)
	default:
		h.logger.Error(message, zap.Error(err), zap.Bool("retryable", generic.IsRetryable(err)))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

func toLeaveDTOs(events []generic.LeaveEvent) []LeaveDTO {
	dtos := make([]LeaveDTO, len(events))
	for i, ev := range events {
		dtos[i] = toLeaveDTO(ev)
	}
	return dtos
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
