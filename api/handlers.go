/*
handlers.go - HTTP API handlers for the attendance and leave engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Attendance:
    GET    /api/employees/{id}/attendance            Current session state
    POST   /api/employees/{id}/attendance/check-in   OUT -> WORKING
    POST   /api/employees/{id}/attendance/break-in   WORKING -> ON_BREAK
    POST   /api/employees/{id}/attendance/break-out  ON_BREAK -> WORKING
    POST   /api/employees/{id}/attendance/check-out  WORKING -> CHECKED_OUT

  Leave:
    GET    /api/employees/{id}/leave/eligibility     Per-day verdicts
    GET    /api/employees/{id}/leave/balance         Availability check
    POST   /api/employees/{id}/leave/requests        Submit a request

  Holidays:
    GET    /api/holidays                             List calendar entries
    POST   /api/holidays                             Create/update an entry
    DELETE /api/holidays/{id}                        Remove an entry

  Misc:
    POST   /api/subscriptions                        Register a push endpoint
    GET    /api/reports/attendance                   Monthly xlsx download

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, rejected submissions
  - 404: Resource not found
  - 409: Invalid session transition
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/attendance-engine/balance"
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/eligibility"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/session"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Holidays   *calendar.CachedHolidays
	Dispatcher *notify.Dispatcher
	Cfg        *config.Config

	// One session machine per employee, created lazily.
	mu       sync.Mutex
	machines map[string]*session.Machine
}

// NewHandler wires the handler over the store, config, and dispatcher.
func NewHandler(store *sqlite.Store, cfg *config.Config, dispatcher *notify.Dispatcher) *Handler {
	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	return &Handler{
		Store:      store,
		Holidays:   calendar.NewCachedHolidays(store, ttl),
		Dispatcher: dispatcher,
		Cfg:        cfg,
		machines:   make(map[string]*session.Machine),
	}
}

// Close stops every live session machine.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.machines {
		m.Close()
	}
}

func (h *Handler) machineFor(employeeID string) *session.Machine {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.machines[employeeID]; ok {
		return m
	}
	m := session.NewMachine(session.Config{
		EmployeeID:    employeeID,
		Service:       h.Store,
		GraceMinutes:  h.Cfg.Shift.GraceMinutes,
		OnLateArrival: h.lateArrivalHook(employeeID),
	})
	h.machines[employeeID] = m
	return m
}

func (h *Handler) lateArrivalHook(employeeID string) func(ctx context.Context, minutesLate int) {
	return func(ctx context.Context, minutesLate int) {
		now := time.Now()
		h.Dispatcher.DispatchLateArrival(ctx, h.audienceFor(employeeID), notify.LateArrival{
			MinutesLate:  minutesLate,
			CheckInAt:    now,
			ShiftStartAt: now.Add(-time.Duration(minutesLate) * time.Minute),
		})
	}
}

func (h *Handler) audienceFor(employeeID string) notify.Audience {
	return notify.Audience{
		EmployeeID:   employeeID,
		EmployeeName: employeeID,
		ManagerID:    h.Cfg.Audience.ManagerID,
		HRPool:       h.Cfg.Audience.HRPool,
		AdminPool:    h.Cfg.Audience.AdminPool,
		ExecutiveID:  h.Cfg.Audience.ExecutiveID,
	}
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// GetAttendance resyncs and returns the employee's session state.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	m := h.machineFor(chi.URLParam(r, "id"))
	if _, err := m.Resync(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "Failed to sync attendance state", err)
		return
	}
	h.writeAttendance(w, m)
}

// CheckIn performs OUT -> WORKING with the submitted geolocation.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m := h.machineFor(chi.URLParam(r, "id"))
	err := m.CheckIn(r.Context(), session.Geo{Lat: req.Lat, Lng: req.Lng, Accuracy: req.Accuracy})
	if err != nil {
		writeTransitionError(w, "check-in failed", err)
		return
	}
	h.writeAttendance(w, m)
}

// BreakIn performs WORKING -> ON_BREAK.
func (h *Handler) BreakIn(w http.ResponseWriter, r *http.Request) {
	m := h.machineFor(chi.URLParam(r, "id"))
	if err := m.BreakIn(r.Context()); err != nil {
		writeTransitionError(w, "break-in failed", err)
		return
	}
	h.writeAttendance(w, m)
}

// BreakOut performs ON_BREAK -> WORKING.
func (h *Handler) BreakOut(w http.ResponseWriter, r *http.Request) {
	m := h.machineFor(chi.URLParam(r, "id"))
	if err := m.BreakOut(r.Context()); err != nil {
		writeTransitionError(w, "break-out failed", err)
		return
	}
	h.writeAttendance(w, m)
}

// CheckOut performs WORKING -> CHECKED_OUT.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	m := h.machineFor(chi.URLParam(r, "id"))
	if err := m.CheckOut(r.Context()); err != nil {
		writeTransitionError(w, "check-out failed", err)
		return
	}
	h.writeAttendance(w, m)
}

func (h *Handler) writeAttendance(w http.ResponseWriter, m *session.Machine) {
	timer := m.Timer()
	writeJSON(w, http.StatusOK, AttendanceDTO{
		State:               string(m.State()),
		WorkedSeconds:       timer.WorkedSeconds,
		BreakSeconds:        timer.BreakSeconds,
		CurrentBreakElapsed: timer.CurrentBreakElapsed,
		RunningMode:         timer.Mode.String(),
	})
}

func writeTransitionError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, msg, err)
	case errors.Is(err, engine.ErrSyncFailed):
		writeError(w, http.StatusBadGateway, msg, err)
	default:
		writeError(w, http.StatusInternalServerError, msg, err)
	}
}

// =============================================================================
// ELIGIBILITY HANDLERS
// =============================================================================

// GetEligibility computes per-day verdicts for ?from=...&to=..., or runs
// the single-day optional-holiday flow for ?optional_holiday=....
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	ctx := r.Context()
	today := engine.Today()

	if raw := r.URL.Query().Get("optional_holiday"); raw != "" {
		date, err := engine.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid optional_holiday date (use YYYY-MM-DD)", err)
			return
		}
		if !h.isOptionalHoliday(ctx, date) {
			writeError(w, http.StatusBadRequest, "Date is not an active optional holiday", nil)
			return
		}
		day := eligibility.OptionalHolidayDay(date)
		writeJSON(w, http.StatusOK, EligibilityDTO{
			Days:                []EligibilityDayDTO{toDayDTO(day)},
			PastOptionalHoliday: eligibility.IsPastOptionalHoliday(date, today),
		})
		return
	}

	from, err := engine.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := engine.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	days, err := h.computeEligibility(ctx, employeeID, from, to, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute eligibility", err)
		return
	}

	dtos := make([]EligibilityDayDTO, len(days))
	for i, d := range days {
		dtos[i] = toDayDTO(d)
	}
	writeJSON(w, http.StatusOK, EligibilityDTO{Days: dtos})
}

func (h *Handler) computeEligibility(ctx context.Context, employeeID string, from, to, today engine.Date) ([]eligibility.Day, error) {
	holidays, err := h.Holidays.ListHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	committed, err := h.Store.CommittedDays(ctx, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load committed days: %w", err)
	}
	snap := calendar.NewSnapshot(holidays, committed)
	return eligibility.Compute(from, to, snap, today), nil
}

func (h *Handler) isOptionalHoliday(ctx context.Context, date engine.Date) bool {
	holidays, err := h.Holidays.ListHolidays(ctx)
	if err != nil {
		return false
	}
	snap := calendar.NewSnapshot(holidays, nil)
	hol, ok := snap.HolidayOn(date)
	return ok && hol.Active && hol.Kind == calendar.KindOptional
}

func toDayDTO(d eligibility.Day) EligibilityDayDTO {
	return EligibilityDayDTO{
		Date:    d.Date.String(),
		Enabled: d.Enabled,
		Reason:  string(d.Reason),
		Session: string(d.Session),
		HalfDay: d.HalfDay,
	}
}

// =============================================================================
// BALANCE HANDLER
// =============================================================================

// GetBalance answers "can this employee take N more units of this type".
// GET /api/employees/{id}/leave/balance?type=CL&requested=1.5
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	code := r.URL.Query().Get("type")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing type parameter", nil)
		return
	}

	requested := engine.ZeroUnits()
	if raw := r.URL.Query().Get("requested"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "Invalid requested amount", err)
			return
		}
		requested = engine.NewUnits(v)
	}

	av, name, err := h.availability(r, employeeID, code, requested)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		Code:      code,
		Name:      name,
		Unlimited: av.Unlimited,
		Raw:       av.Raw.Float64(),
		Effective: av.Effective.Float64(),
		Requested: requested.Float64(),
		After:     av.After.Float64(),
		CanSubmit: av.CanSubmit,
	})
}

// availability loads the balance record and pending reservations and runs
// the computation. A missing record yields zero availability, not an error.
func (h *Handler) availability(r *http.Request, employeeID, code string, requested engine.Units) (balance.Availability, string, error) {
	ctx := r.Context()

	tb, err := h.Store.TypeBalance(ctx, employeeID, code)
	if err != nil && !errors.Is(err, engine.ErrNoBalanceRecord) {
		return balance.Availability{}, "", err
	}
	pending, err := h.Store.PendingUnits(ctx, employeeID, code)
	if err != nil {
		return balance.Availability{}, "", err
	}

	name := ""
	if tb != nil {
		name = tb.Name
	}
	return balance.Compute(tb, pending, requested), name, nil
}

// =============================================================================
// LEAVE SUBMISSION
// =============================================================================

// SubmitLeave validates and stores a leave request. Eligibility and the
// balance gate are recomputed server-side; the client's view is advisory.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LeaveType == "" {
		writeError(w, http.StatusBadRequest, "Missing leave_type", nil)
		return
	}

	today := engine.Today()
	var chosen []eligibility.Day

	if req.OptionalHoliday != "" {
		day, err := h.optionalHolidayDay(ctx, req.OptionalHoliday, today)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Optional holiday not submittable", err)
			return
		}
		chosen = []eligibility.Day{day}
	} else {
		days, err := h.rangeDays(ctx, employeeID, req, today)
		if err != nil {
			writeSubmissionError(w, err)
			return
		}
		chosen = days
	}

	requested := eligibility.RequestedUnits(chosen)
	av, _, err := h.availability(r, employeeID, req.LeaveType, requested)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	if !av.CanSubmit {
		writeError(w, http.StatusBadRequest, "Insufficient balance",
			fmt.Errorf("requested %s with %s effective: %w",
				requested, av.Effective, engine.ErrSubmissionRejected))
		return
	}

	stored := sqlite.LeaveRequest{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		LeaveType:  req.LeaveType,
		Reason:     req.Reason,
		Status:     "PENDING",
		CreatedAt:  time.Now().UTC(),
	}
	for _, d := range chosen {
		stored.Days = append(stored.Days, sqlite.LeaveDay{
			Date:    d.Date,
			Session: string(d.Session),
			HalfDay: d.HalfDay,
		})
	}
	if err := h.Store.SaveLeaveRequest(ctx, stored); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save request", err)
		return
	}

	h.Dispatcher.DispatchLeaveSubmitted(ctx, h.audienceFor(employeeID), req.LeaveType, requested.Float64())

	writeJSON(w, http.StatusCreated, LeaveRequestDTO{
		ID:        stored.ID,
		LeaveType: stored.LeaveType,
		Status:    stored.Status,
		Units:     requested.Float64(),
	})
}

// optionalHolidayDay validates the optional-holiday submission path. Past
// optional holidays remain visible in eligibility but are not submittable.
func (h *Handler) optionalHolidayDay(ctx context.Context, raw string, today engine.Date) (eligibility.Day, error) {
	date, err := engine.ParseDate(raw)
	if err != nil {
		return eligibility.Day{}, fmt.Errorf("invalid date: %w", err)
	}
	if !h.isOptionalHoliday(ctx, date) {
		return eligibility.Day{}, fmt.Errorf("not an active optional holiday: %w", engine.ErrSubmissionRejected)
	}
	if eligibility.IsPastOptionalHoliday(date, today) {
		return eligibility.Day{}, fmt.Errorf("optional holiday in the past: %w", engine.ErrSubmissionRejected)
	}
	return eligibility.OptionalHolidayDay(date), nil
}

// rangeDays recomputes eligibility for the submission range and applies the
// client's per-day session choices. Any day the calculator disables, or any
// half-day choice on a bridged weekend, rejects the whole submission.
func (h *Handler) rangeDays(ctx context.Context, employeeID string, req SubmitLeaveRequest, today engine.Date) ([]eligibility.Day, error) {
	from, err := engine.ParseDate(req.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w: %w", engine.ErrSubmissionRejected, err)
	}
	to, err := engine.ParseDate(req.To)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w: %w", engine.ErrSubmissionRejected, err)
	}

	computed, err := h.computeEligibility(ctx, employeeID, from, to, today)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*eligibility.Day, len(computed))
	for i := range computed {
		byDate[computed[i].Date.String()] = &computed[i]
	}

	var chosen []eligibility.Day
	for _, reqDay := range req.Days {
		day, ok := byDate[reqDay.Date]
		if !ok {
			return nil, fmt.Errorf("day %s outside range: %w", reqDay.Date, engine.ErrSubmissionRejected)
		}
		s := eligibility.Session(reqDay.Session)
		if s == "" {
			s = eligibility.SessionFull
		}
		if err := eligibility.SetSession(day, s); err != nil {
			return nil, fmt.Errorf("day %s: %w", reqDay.Date, err)
		}
		chosen = append(chosen, *day)
	}
	if len(chosen) == 0 {
		return nil, fmt.Errorf("no days selected: %w", engine.ErrSubmissionRejected)
	}
	return chosen, nil
}

func writeSubmissionError(w http.ResponseWriter, err error) {
	if engine.IsClientError(err) {
		writeError(w, http.StatusBadRequest, "Submission rejected", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to validate submission", err)
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns all calendar entries.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{
			ID:     hol.ID,
			Date:   hol.Date.String(),
			Kind:   string(hol.Kind),
			Name:   hol.Name,
			Active: hol.Active,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday inserts or updates a calendar entry and invalidates the
// eligibility cache.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	kind := calendar.HolidayKind(req.Kind)
	if kind != calendar.KindPublic && kind != calendar.KindOptional {
		writeError(w, http.StatusBadRequest, "Kind must be PUBLIC or OPTIONAL", nil)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing name", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	err = h.Store.SaveHoliday(r.Context(), calendar.Holiday{
		ID: req.ID, Date: date, Kind: kind, Name: req.Name, Active: req.Active,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	h.Holidays.Invalidate()

	writeJSON(w, http.StatusCreated, req)
}

// DeleteHoliday removes a calendar entry.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	h.Holidays.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SUBSCRIPTIONS AND REPORTS
// =============================================================================

// Subscribe registers a browser push subscription.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ReceiverID == "" || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "Missing receiver_id or endpoint", nil)
		return
	}

	err := h.Store.SaveSubscription(r.Context(), notify.PushSubscription{
		ReceiverID: req.ReceiverID,
		Endpoint:   req.Endpoint,
		P256DH:     req.Keys.P256DH,
		Auth:       req.Keys.Auth,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save subscription", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// AttendanceReport streams the monthly xlsx workbook.
// GET /api/reports/attendance?employee_id=emp-1&year=2024&month=6
func (h *Handler) AttendanceReport(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employee_id")
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	monthNum, errM := strconv.Atoi(r.URL.Query().Get("month"))
	if employeeID == "" || errY != nil || errM != nil || monthNum < 1 || monthNum > 12 {
		writeError(w, http.StatusBadRequest, "Need employee_id, year, and month (1-12)", nil)
		return
	}
	month := time.Month(monthNum)

	rows, err := h.Store.MonthlyAttendance(r.Context(), employeeID, year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load attendance", err)
		return
	}

	filename := fmt.Sprintf("attendance-%s-%04d-%02d.xlsx", employeeID, year, monthNum)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := report.WriteMonthly(w, employeeID, year, month, rows); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

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
