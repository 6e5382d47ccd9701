/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the data source with members
	and leave days. Leaves are recorded through the ledger, so every stored
	flag is exactly what classification produces.

AVAILABLE SCENARIOS:

	team-demo:      Four members with a realistic year (fixture data source)
	monthly-quota:  Two January leaves, the second one is LOP
	carry-forward:  No January leave, two February leaves, both valid
	full-year:      One leave per month plus a second in December (1 LOP)
	delete-flip:    monthly-quota, then the valid day is deleted and the
	                LOP day becomes valid

HOW SCENARIOS WORK:
 1. Reset the data source (when it supports it)
 2. Create members
 3. Record leaves in the listed order via leave.Ledger
 4. Optionally delete some of them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "delete-flip", "year": 2024}

NOTE:

	Scenarios reset the data source. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - cmd/server/main.go: DATA_SOURCE=fixture loads team-demo at startup
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// Resetter wipes a data source.
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const FixtureScenario = "team-demo"

var scenarios = []ScenarioDTO{
	{
		ID:          FixtureScenario,
		Name:        "Team Demo",
		Description: "Four members with leaves across the year, some LOP",
	},
	{
		ID:          "monthly-quota",
		Name:        "Monthly Quota",
		Description: "Two leaves in January: the second exceeds the quota and is LOP",
	},
	{
		ID:          "carry-forward",
		Name:        "Carry-Forward",
		Description: "Unused January allowance lets both February leaves be paid",
	},
	{
		ID:          "full-year",
		Name:        "Full Year",
		Description: "One leave every month plus an extra in December (12 valid, 1 LOP)",
	},
	{
		ID:          "delete-flip",
		Name:        "Delete Flips Sibling",
		Description: "Deleting the paid January day turns the LOP day into a paid one",
	},
}

type seedMember struct {
	id         generic.MemberID
	name       string
	email      string
	position   string
	department string
	salary     string
}

type seedLeave struct {
	member generic.MemberID
	month  time.Month
	day    int
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the data source and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.reset == nil || h.Members == nil {
		writeError(w, http.StatusNotImplemented, "Data source does not support scenarios", nil)
		return
	}
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	year := req.Year
	if year == 0 {
		year = h.now().Year()
	}
	if !generic.ValidYear(year) {
		writeError(w, http.StatusBadRequest, "Invalid year", nil)
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset data source", err)
		return
	}
	h.currentScenario = ""

	if err := LoadScenario(ctx, req.ScenarioID, h.Ledger, h.Members, year); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.Int("year", year))

	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": req.ScenarioID, "year": year})
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// LoadScenario seeds members and leaves for scenario id in year. It does not
// reset anything first.
func LoadScenario(ctx context.Context, id string, ledger *leave.Ledger, members generic.MemberStore, year int) error {
	switch id {
	case FixtureScenario:
		return loadTeamDemo(ctx, ledger, members, year)
	case "monthly-quota":
		_, err := loadSingleMember(ctx, ledger, members, year, []seedLeave{
			{"emp-x", time.January, 5},
			{"emp-x", time.January, 20},
		})
		return err
	case "carry-forward":
		_, err := loadSingleMember(ctx, ledger, members, year, []seedLeave{
			{"emp-x", time.February, 3},
			{"emp-x", time.February, 17},
		})
		return err
	case "full-year":
		var leaves []seedLeave
		for m := time.January; m <= time.December; m++ {
			leaves = append(leaves, seedLeave{"emp-x", m, 10})
		}
		leaves = append(leaves, seedLeave{"emp-x", time.December, 24})
		_, err := loadSingleMember(ctx, ledger, members, year, leaves)
		return err
	case "delete-flip":
		ids, err := loadSingleMember(ctx, ledger, members, year, []seedLeave{
			{"emp-x", time.January, 5},
			{"emp-x", time.January, 20},
		})
		if err != nil {
			return err
		}
		_, err = ledger.DeleteLeave(ctx, ids[0])
		return err
	default:
		return fmt.Errorf("unknown scenario %q", id)
	}
}

func loadSingleMember(ctx context.Context, ledger *leave.Ledger, members generic.MemberStore, year int, leaves []seedLeave) ([]generic.EventID, error) {
	err := saveMembers(ctx, members, []seedMember{
		{id: "emp-x", name: "Member X", email: "x@example.com", position: "Analyst", department: "Finance", salary: "31000"},
	})
	if err != nil {
		return nil, err
	}
	return recordLeaves(ctx, ledger, year, leaves)
}

func loadTeamDemo(ctx context.Context, ledger *leave.Ledger, members generic.MemberStore, year int) error {
	err := saveMembers(ctx, members, []seedMember{
		{id: "emp-asha", name: "Asha Nair", email: "asha@example.com", position: "Engineer", department: "Platform", salary: "62000"},
		{id: "emp-ravi", name: "Ravi Kumar", email: "ravi@example.com", position: "Designer", department: "Product", salary: "48000"},
		{id: "emp-meera", name: "Meera Iyer", email: "meera@example.com", position: "Accountant", department: "Finance", salary: "41000"},
		{id: "emp-john", name: "John Mathew", email: "john@example.com", position: "Support Lead", department: "Operations", salary: "39000.50"},
	})
	if err != nil {
		return err
	}

	_, err = recordLeaves(ctx, ledger, year, []seedLeave{
		// Asha: steady one per month, never LOP
		{"emp-asha", time.January, 15},
		{"emp-asha", time.February, 12},
		{"emp-asha", time.April, 8},
		{"emp-asha", time.May, 20},

		// Ravi: saves up in Q1 then takes a week in April
		{"emp-ravi", time.April, 1},
		{"emp-ravi", time.April, 2},
		{"emp-ravi", time.April, 3},
		{"emp-ravi", time.April, 4},
		{"emp-ravi", time.April, 5},

		// Meera: two in January, the second is LOP
		{"emp-meera", time.January, 2},
		{"emp-meera", time.January, 23},
		{"emp-meera", time.March, 14},

		// John: recorded out of order; the earlier day still wins
		{"emp-john", time.June, 28},
		{"emp-john", time.June, 3},
	})
	return err
}

func saveMembers(ctx context.Context, store generic.MemberStore, seeds []seedMember) error {
	for _, s := range seeds {
		_, err := store.SaveMember(ctx, generic.Member{
			ID:         s.id,
			Name:       s.name,
			Email:      s.email,
			Position:   s.position,
			Department: s.department,
			DateJoined: generic.NewTimePoint(2020, time.March, 1),
			Salary:     decimal.RequireFromString(s.salary),
			Status:     generic.MemberActive,
		})
		if err != nil {
			return fmt.Errorf("save member %s: %w", s.id, err)
		}
	}
	return nil
}

func recordLeaves(ctx context.Context, ledger *leave.Ledger, year int, leaves []seedLeave) ([]generic.EventID, error) {
	ids := make([]generic.EventID, 0, len(leaves))
	for _, l := range leaves {
		date := generic.NewTimePoint(year, l.month, l.day).String()
		res, err := ledger.RecordLeave(ctx, l.member, date, nil)
		if err != nil {
			return nil, fmt.Errorf("record %s for %s: %w", date, l.member, err)
		}
		ids = append(ids, res.Event.ID)
	}
	return ids, nil
}
