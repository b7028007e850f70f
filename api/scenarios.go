/*
scenarios.go - Demo scenario definitions and loaders

PURPOSE:
  Provides pre-configured demo scenarios for testing and demonstration.
  Each scenario resets the store and seeds one organization with
  employees, attendance, holidays, weekend rules and salary structures.

AVAILABLE SCENARIOS:
  standard-month:
    - April 2024, Sunday weekends, two holidays
    - 20 present, 2 leave (paid), 2 absent: 28 paid days of 30

  anniversary-month:
    - Employee joined 2023-03-15 with 12 days allowed
    - March 2024 opens the 2024-03-15 leave year

  leave-exhausted:
    - All 12 days used in January 2024
    - May 2024 has 1 leave + 1 half-day, all unpaid

  increment-history:
    - Structure configured, then two increments (2023-01-10, 2024-04-01)
    - March and April 2024 resolve different structures

SALARY WRITES:
  Structures and increments go through the compensation manager, so
  scenario loads produce the same history rows and events as the API.

SEE ALSO:
  - handlers.go: Payroll and salary endpoints
  - payroll/engine.go: What the seeded data feeds
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// ScenarioOrganization is the organization every scenario seeds.
const ScenarioOrganization generic.OrganizationID = "acme"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-month",
		Name:        "Standard Month",
		Description: "April 2024 with holidays, paid leave and absences (28 of 30 days paid)",
		Category:    "payroll",
	},
	{
		ID:          "anniversary-month",
		Name:        "Anniversary Month",
		Description: "Leave year rolls over on the join-date anniversary",
		Category:    "leave",
	},
	{
		ID:          "leave-exhausted",
		Name:        "Leave Exhausted",
		Description: "Allowance used up before the month; leave and half-days go unpaid",
		Category:    "leave",
	},
	{
		ID:          "increment-history",
		Name:        "Increment History",
		Description: "Two increments; each month resolves the structure in force on its first day",
		Category:    "compensation",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and seeds the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "loaded",
		"scenario":        req.ScenarioID,
		"organization_id": string(ScenarioOrganization),
	})
}

// Seed drops all data and loads scenarioID.
func (h *Handler) Seed(ctx context.Context, scenarioID string) error {
	loaders := map[string]func(context.Context) error{
		"standard-month":    h.loadStandardMonth,
		"anniversary-month": h.loadAnniversaryMonth,
		"leave-exhausted":   h.loadLeaveExhausted,
		"increment-history": h.loadIncrementHistory,
	}
	load, ok := loaders[scenarioID]
	if !ok {
		return generic.Invalid("scenario_id", "unknown scenario %q", scenarioID)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.setScenario("")
	if err := load(ctx); err != nil {
		return fmt.Errorf("load scenario %s: %w", scenarioID, err)
	}
	h.setScenario(scenarioID)
	h.Logger.Info("scenario loaded", "scenario", scenarioID)
	return nil
}

// ResetDatabase drops all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) scenario() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardMonth(ctx context.Context) error {
	if err := h.seedOrganization(ctx, 12, []string{"Sunday"}, "2024-04-10", "2024-04-17"); err != nil {
		return err
	}
	emp := payroll.Employee{
		ID:             "emp-priya",
		OrganizationID: ScenarioOrganization,
		Name:           "Priya Raman",
		JoinDate:       generic.NewTimePoint(2023, time.March, 15),
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}
	if _, err := h.Manager.SetStructure(ctx, emp.ID, structure(25000, 4000, 2000, 1000)); err != nil {
		return err
	}

	days, err := h.monthAttendance(ctx, emp.ID, generic.YearMonth{Year: 2024, Month: time.April}, map[int]attendance.Status{
		22: attendance.StatusLeave,
		23: attendance.StatusLeave,
		25: attendance.StatusAbsent,
		26: unmarked,
	})
	if err != nil {
		return err
	}
	return h.Store.SaveAttendance(ctx, days...)
}

func (h *Handler) loadAnniversaryMonth(ctx context.Context) error {
	if err := h.seedOrganization(ctx, 12, []string{"Saturday", "Sunday"}); err != nil {
		return err
	}
	emp := payroll.Employee{
		ID:             "emp-arjun",
		OrganizationID: ScenarioOrganization,
		Name:           "Arjun Mehta",
		JoinDate:       generic.NewTimePoint(2023, time.March, 15),
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}
	if _, err := h.Manager.SetStructure(ctx, emp.ID, structure(30000, 0, 0, 0)); err != nil {
		return err
	}

	// Leave before the anniversary belongs to the closing leave year.
	feb, err := h.monthAttendance(ctx, emp.ID, generic.YearMonth{Year: 2024, Month: time.February}, map[int]attendance.Status{
		5: attendance.StatusLeave, 6: attendance.StatusLeave, 7: attendance.StatusLeave,
	})
	if err != nil {
		return err
	}
	mar, err := h.monthAttendance(ctx, emp.ID, generic.YearMonth{Year: 2024, Month: time.March}, map[int]attendance.Status{
		18: attendance.StatusLeave,
		20: attendance.StatusHalfDay,
	})
	if err != nil {
		return err
	}
	return h.Store.SaveAttendance(ctx, append(feb, mar...)...)
}

func (h *Handler) loadLeaveExhausted(ctx context.Context) error {
	if err := h.seedOrganization(ctx, 12, []string{"Saturday", "Sunday"}, "2024-05-01"); err != nil {
		return err
	}
	emp := payroll.Employee{
		ID:             "emp-kavya",
		OrganizationID: ScenarioOrganization,
		Name:           "Kavya Iyer",
		JoinDate:       generic.NewTimePoint(2023, time.June, 1),
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}
	if _, err := h.Manager.SetStructure(ctx, emp.ID, structure(28000, 2000, 1000, 500)); err != nil {
		return err
	}

	janLeave := map[int]attendance.Status{}
	for _, d := range []int{2, 3, 4, 5, 8, 9, 10, 11, 12, 15, 16, 17} {
		janLeave[d] = attendance.StatusLeave
	}
	jan, err := h.monthAttendance(ctx, emp.ID, generic.YearMonth{Year: 2024, Month: time.January}, janLeave)
	if err != nil {
		return err
	}
	may, err := h.monthAttendance(ctx, emp.ID, generic.YearMonth{Year: 2024, Month: time.May}, map[int]attendance.Status{
		14: attendance.StatusLeave,
		21: attendance.StatusHalfDay,
	})
	if err != nil {
		return err
	}
	return h.Store.SaveAttendance(ctx, append(jan, may...)...)
}

func (h *Handler) loadIncrementHistory(ctx context.Context) error {
	if err := h.seedOrganization(ctx, 18, []string{"Saturday", "Sunday"}); err != nil {
		return err
	}
	emp := payroll.Employee{
		ID:             "emp-rohan",
		OrganizationID: ScenarioOrganization,
		Name:           "Rohan Das",
		JoinDate:       generic.NewTimePoint(2022, time.January, 10),
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}

	if _, err := h.Manager.SetStructure(ctx, emp.ID, structure(40000, 4000, 2000, 1000)); err != nil {
		return err
	}
	increments := []struct {
		base   int64
		amount int64
		date   generic.TimePoint
	}{
		{45000, 5000, generic.NewTimePoint(2023, time.January, 10)},
		{50000, 5000, generic.NewTimePoint(2024, time.April, 1)},
	}
	for _, inc := range increments {
		_, err := h.Manager.ApplyIncrement(ctx, compensation.IncrementRequest{
			EmployeeID:      emp.ID,
			Components:      structure(inc.base, 4000, 2000, 1000),
			IncrementAmount: decimal.NewFromInt(inc.amount),
			IncrementDate:   inc.date,
		})
		if err != nil {
			return err
		}
	}

	var days []attendance.Day
	for _, m := range []time.Month{time.March, time.April} {
		month, err := h.monthAttendance(ctx, emp.ID, generic.YearMonth{Year: 2024, Month: m}, nil)
		if err != nil {
			return err
		}
		days = append(days, month...)
	}
	return h.Store.SaveAttendance(ctx, days...)
}

// =============================================================================
// SEED HELPERS
// =============================================================================

// unmarked leaves a working day without an attendance row.
const unmarked attendance.Status = ""

func (h *Handler) seedOrganization(ctx context.Context, allowance int, weekends []string, holidays ...string) error {
	if err := h.Store.SetLeaveAllowance(ctx, ScenarioOrganization, allowance); err != nil {
		return err
	}
	if err := h.Store.SetWeekends(ctx, ScenarioOrganization, weekends); err != nil {
		return err
	}
	for _, raw := range holidays {
		date, err := generic.ParseDate(raw)
		if err != nil {
			return err
		}
		if err := h.Store.SaveHoliday(ctx, attendance.Holiday{
			OrganizationID: ScenarioOrganization,
			Date:           date,
			Reason:         "Company holiday",
		}); err != nil {
			return err
		}
	}
	return nil
}

// monthAttendance marks every working day Present unless overrides says
// otherwise. Weekends and holidays get no row.
func (h *Handler) monthAttendance(ctx context.Context, empID generic.EmployeeID, month generic.YearMonth, overrides map[int]attendance.Status) ([]attendance.Day, error) {
	names, err := h.Store.Weekends(ctx, ScenarioOrganization)
	if err != nil {
		return nil, err
	}
	weekends, err := attendance.NewWeekendConfig(names...)
	if err != nil {
		return nil, err
	}
	holidays, err := h.Store.HolidaysBetween(ctx, ScenarioOrganization, month.Period())
	if err != nil {
		return nil, err
	}
	cal := attendance.NewCalendar(holidays, weekends)

	entry, _ := attendance.ParseClock("9:00 AM")
	exit, _ := attendance.ParseClock("6:00 PM")

	var days []attendance.Day
	for _, day := range month.Period().Days() {
		status, override := overrides[day.Day()]
		if !override {
			if cal.IsHoliday(day) || cal.IsWeekend(day) {
				continue
			}
			status = attendance.StatusPresent
		}
		if status == unmarked {
			continue
		}
		row := attendance.Day{EmployeeID: empID, Date: day, Status: status}
		if status == attendance.StatusPresent || status == attendance.StatusHalfDay {
			in, out := entry, exit
			row.EntryTime, row.ExitTime = &in, &out
		}
		days = append(days, row)
	}
	return days, nil
}

// structure builds components whose total is base + da + hra - pf.
func structure(base, da, hra, pf int64) compensation.Components {
	return compensation.Components{
		Base: decimal.NewFromInt(base),
		DA:   decimal.NewFromInt(da),
		HRA:  decimal.NewFromInt(hra),
		PF:   decimal.NewFromInt(pf),
	}
}
