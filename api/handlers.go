/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes payroll reconciliation and salary maintenance via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  payroll engine and the compensation manager.

ENDPOINTS:
  Payroll:
    GET    /api/employees/{id}/payroll?month=YYYY-MM       One employee's month
    GET    /api/organizations/{id}/payroll?month=YYYY-MM   Every employee of an org

  Salary:
    GET    /api/employees/{id}/salary                  Current structure + history
    PUT    /api/employees/{id}/salary                  Configure structure
    POST   /api/employees/{id}/increments              Apply an increment
    PUT    /api/employees/{id}/increments/{entryID}    Correct the latest increment

  Runs:
    GET    /api/payroll-runs?status=                            List runs
    POST   /api/payroll-runs/process?organization_id=&month=    Record a month
    POST   /api/payroll-runs/scheduler/run                      Run the scheduler now

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Drop all data

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (generic.ErrInvalidInput)
  - 404: Employee, history entry or run not found (generic.ErrNotFound)
  - 409: Concurrent modification, safe to retry
  - 500: Store failures and anything unexpected

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/compensation"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// Store is everything the API reads and writes.
type Store interface {
	payroll.Source
	payroll.RunStore
	compensation.Store

	SaveEmployee(ctx context.Context, emp payroll.Employee) error
	SaveAttendance(ctx context.Context, days ...attendance.Day) error
	SaveHoliday(ctx context.Context, h attendance.Holiday) error
	SetWeekends(ctx context.Context, orgID generic.OrganizationID, names []string) error
	SetLeaveAllowance(ctx context.Context, orgID generic.OrganizationID, days int) error
	Reset(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store     Store
	Engine    *payroll.Engine
	Manager   *compensation.Manager
	Scheduler *payroll.Scheduler // optional
	Logger    *slog.Logger

	validate *validator.Validate

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler. A nil logger uses slog.Default.
func NewHandler(store Store, engine *payroll.Engine, manager *compensation.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:    store,
		Engine:   engine,
		Manager:  manager,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// PAYROLL
// =============================================================================

func (h *Handler) GetEmployeePayroll(w http.ResponseWriter, r *http.Request) {
	empID := generic.EmployeeID(chi.URLParam(r, "id"))
	month := r.URL.Query().Get("month")

	result, err := h.Engine.ComputeMonthlyPayroll(r.Context(), empID, month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute payroll", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollDTO(result))
}

func (h *Handler) GetOrganizationPayroll(w http.ResponseWriter, r *http.Request) {
	orgID := generic.OrganizationID(chi.URLParam(r, "id"))
	month := r.URL.Query().Get("month")

	items, err := h.Engine.ComputeOrganizationPayroll(r.Context(), orgID, month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute organization payroll", err)
		return
	}

	resp := OrganizationPayrollDTO{
		OrganizationID: string(orgID),
		Month:          month,
		Results:        []PayrollDTO{},
		Errors:         []BatchErrorDTO{},
	}
	for _, item := range items {
		if item.Err != nil {
			resp.Errors = append(resp.Errors, BatchErrorDTO{
				EmployeeID: string(item.Employee.ID),
				Error:      item.Err.Error(),
			})
			continue
		}
		resp.Results = append(resp.Results, toPayrollDTO(item.Result))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SALARY STRUCTURE
// =============================================================================

func (h *Handler) GetSalary(w http.ResponseWriter, r *http.Request) {
	empID := generic.EmployeeID(chi.URLParam(r, "id"))

	overview, err := h.Manager.Overview(r.Context(), empID)
	if err != nil {
		h.writeDomainError(w, "Failed to load salary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalaryOverviewDTO(overview))
}

func (h *Handler) SetSalary(w http.ResponseWriter, r *http.Request) {
	empID := generic.EmployeeID(chi.URLParam(r, "id"))

	var req SetSalaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.employeeExists(r.Context(), w, empID) {
		return
	}

	record, err := h.Manager.SetStructure(r.Context(), empID, req.Components.toDomain())
	if err != nil {
		h.writeDomainError(w, "Failed to set salary", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

func (h *Handler) ApplyIncrement(w http.ResponseWriter, r *http.Request) {
	empID := generic.EmployeeID(chi.URLParam(r, "id"))

	var req ApplyIncrementRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := generic.ParseDate(req.IncrementDate)
	if err != nil {
		h.writeDomainError(w, "Invalid increment date", err)
		return
	}
	if !h.employeeExists(r.Context(), w, empID) {
		return
	}

	record, err := h.Manager.ApplyIncrement(r.Context(), compensation.IncrementRequest{
		EmployeeID:      empID,
		Components:      req.Components.toDomain(),
		IncrementAmount: req.IncrementAmount,
		IncrementDate:   date,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to apply increment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(record))
}

func (h *Handler) EditIncrement(w http.ResponseWriter, r *http.Request) {
	empID := generic.EmployeeID(chi.URLParam(r, "id"))
	entryID := chi.URLParam(r, "entryID")

	var req EditIncrementRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.Manager.EditIncrement(r.Context(), compensation.EditIncrementRequest{
		EmployeeID:      empID,
		HistoryEntryID:  entryID,
		Components:      req.Components.toDomain(),
		IncrementAmount: req.IncrementAmount,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to edit increment", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// employeeExists writes a 404 for an unknown employee.
func (h *Handler) employeeExists(ctx context.Context, w http.ResponseWriter, empID generic.EmployeeID) bool {
	if _, err := h.Store.GetEmployee(ctx, empID); err != nil {
		h.writeDomainError(w, "Employee not found", err)
		return false
	}
	return true
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	status := payroll.RunStatus(r.URL.Query().Get("status"))
	switch status {
	case "", payroll.RunPending, payroll.RunCompleted, payroll.RunFailed:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", fmt.Errorf("unknown run status %q", status))
		return
	}

	runs, err := h.Store.ListRuns(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ProcessMonth(w http.ResponseWriter, r *http.Request) {
	orgID := generic.OrganizationID(r.URL.Query().Get("organization_id"))
	month := r.URL.Query().Get("month")

	summary, err := h.Engine.ProcessMonth(r.Context(), h.Store, orgID, month)
	if err != nil {
		h.writeDomainError(w, "Failed to process month", err)
		return
	}
	h.Logger.Info("payroll month processed",
		"organization_id", orgID,
		"month", month,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	writeJSON(w, http.StatusOK, ProcessSummaryDTO{
		OrganizationID: string(orgID),
		Month:          summary.Month.String(),
		Processed:      summary.Processed,
		Skipped:        summary.Skipped,
		Failed:         summary.Failed,
	})
}

// RunScheduler runs one scheduler pass synchronously.
func (h *Handler) RunScheduler(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Scheduler not configured", nil)
		return
	}
	summaries := h.Scheduler.RunNow(r.Context())
	dtos := make([]ProcessSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, ProcessSummaryDTO{
			Month:     s.Month.String(),
			Processed: s.Processed,
			Skipped:   s.Skipped,
			Failed:    s.Failed,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Code:    "invalid_input",
				Details: fields,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// errorStatus maps the generic error kinds to HTTP status codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, generic.ErrStoreFailure):
		return http.StatusInternalServerError, "store_failure"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
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
