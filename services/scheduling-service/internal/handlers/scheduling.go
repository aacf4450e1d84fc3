package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/availability"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/engine"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

type SchedulingHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewSchedulingHandler(eng *engine.Engine, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{engine: eng, logger: logger}
}

type bookRequest struct {
	ProviderID       string `json:"provider_id"`
	RequesterID      string `json:"requester_id,omitempty"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	DurationMinutes  int    `json:"duration_minutes"`
	Notes            string `json:"notes,omitempty"`
	ConsultationType string `json:"consultation_type,omitempty"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

type rescheduleRequest struct {
	AppointmentID   string `json:"appointment_id"`
	NewDate         string `json:"new_date"`
	NewTime         string `json:"new_time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type bulkRescheduleRequest struct {
	OldDate string `json:"old_date"`
	NewDate string `json:"new_date"`
	Reason  string `json:"reason,omitempty"`
}

type lifecycleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Notes         string `json:"notes,omitempty"`
}

type appointmentItem struct {
	AppointmentID      string   `json:"appointment_id"`
	ProviderID         string   `json:"provider_id"`
	RequesterID        string   `json:"requester_id"`
	Date               string   `json:"date"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	DurationMinutes    int      `json:"duration_minutes"`
	Status             string   `json:"status"`
	Notes              string   `json:"notes,omitempty"`
	ConsultationType   string   `json:"consultation_type,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
	CompletedAt        string   `json:"completed_at,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
	CancellationReason string   `json:"cancellation_reason,omitempty"`
	RefundStatus       string   `json:"refund_status"`
	RefundAmount       float64  `json:"refund_amount"`
	RefundPercent      float64  `json:"refund_percent"`
	RemindersSent      []string `json:"reminders_sent,omitempty"`
}

type slotItem struct {
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Available     bool   `json:"available"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

type dayItem struct {
	Date       string     `json:"date"`
	WorkingDay bool       `json:"working_day"`
	Slots      []slotItem `json:"slots"`
}

type availabilityResponse struct {
	ProviderID     string    `json:"provider_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	SlotMinutes    int       `json:"slot_minutes"`
	TotalAvailable int       `json:"total_available"`
	Days           []dayItem `json:"days"`
}

type conflictResponse struct {
	Conflict    bool                `json:"conflict"`
	Conflicts   []conflictItem      `json:"conflicts,omitempty"`
	Suggestions []suggestedSlotItem `json:"suggestions,omitempty"`
}

type conflictItem struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

type suggestedSlotItem struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	slotMinutes := 0
	if raw := q.Get("slot_minutes"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "slot_minutes must be an integer")
			return
		}
		slotMinutes = v
	}

	report, err := h.engine.Availability(r.Context(), q.Get("provider_id"), q.Get("start_date"), q.Get("end_date"), slotMinutes)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := availabilityResponse{
		ProviderID:     report.ProviderID,
		StartDate:      report.StartDate,
		EndDate:        report.EndDate,
		SlotMinutes:    report.SlotMinutes,
		TotalAvailable: report.TotalAvailable,
		Days:           make([]dayItem, 0, len(report.Days)),
	}
	for _, d := range report.Days {
		resp.Days = append(resp.Days, toDayItem(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	appt, err := h.engine.Book(r.Context(), caller, engine.BookingRequest{
		ProviderID:       req.ProviderID,
		RequesterID:      req.RequesterID,
		Date:             req.Date,
		StartTime:        req.Time,
		DurationMinutes:  req.DurationMinutes,
		Notes:            req.Notes,
		ConsultationType: req.ConsultationType,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	appt, err := h.engine.Cancel(r.Context(), caller, req.AppointmentID, req.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	res, err := h.engine.Reschedule(r.Context(), caller, req.AppointmentID, req.NewDate, req.NewTime, req.DurationMinutes, req.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"old_appointment": toAppointmentItem(res.Old),
		"new_appointment": toAppointmentItem(res.New),
	})
}

func (h *SchedulingHandler) BulkReschedule(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req bulkRescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.engine.BulkReschedule(r.Context(), caller, req.OldDate, req.NewDate, req.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	moved := make([]map[string]any, 0, len(res.Moved))
	for _, m := range res.Moved {
		moved = append(moved, map[string]any{
			"old_appointment": toAppointmentItem(m.Old),
			"new_appointment": toAppointmentItem(m.New),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rescheduled_count": len(res.Moved),
		"total_found":       res.TotalFound,
		"moved":             moved,
	})
}

func (h *SchedulingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(caller engine.Caller, req lifecycleRequest) (model.Appointment, error) {
		return h.engine.Confirm(r.Context(), caller, req.AppointmentID)
	})
}

func (h *SchedulingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(caller engine.Caller, req lifecycleRequest) (model.Appointment, error) {
		return h.engine.Complete(r.Context(), caller, req.AppointmentID, req.Notes)
	})
}

func (h *SchedulingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(caller engine.Caller, req lifecycleRequest) (model.Appointment, error) {
		return h.engine.MarkNoShow(r.Context(), caller, req.AppointmentID)
	})
}

func (h *SchedulingHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(engine.Caller, lifecycleRequest) (model.Appointment, error)) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req lifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	appt, err := op(caller, req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *SchedulingHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("appointment_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	appt, err := h.engine.Get(r.Context(), caller, id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

// List serves both sides: requesters get their own appointments,
// providers get their schedule for a date range.
func (h *SchedulingHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	var appts []model.Appointment
	var err error
	switch caller.Role {
	case engine.RoleProvider:
		appts, err = h.engine.ListProviderSchedule(r.Context(), caller, q.Get("from"), q.Get("to"))
	case engine.RoleRequester:
		limit := 0
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
		}
		appts, err = h.engine.ListRequesterAppointments(r.Context(), caller, limit)
	default:
		writeError(w, http.StatusForbidden, "unknown caller role")
		return
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *SchedulingHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	duration, err := strconv.Atoi(q.Get("duration_minutes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration_minutes must be an integer")
		return
	}

	report, err := h.engine.DetectConflict(r.Context(), q.Get("provider_id"), q.Get("date"), q.Get("time"), duration, q.Get("exclude_id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictResponse(report))
}

// requireCaller reads the gateway-verified identity headers.
func (h *SchedulingHandler) requireCaller(w http.ResponseWriter, r *http.Request) (engine.Caller, bool) {
	id := r.Header.Get("X-Caller-Id")
	role := engine.Role(r.Header.Get("X-Caller-Role"))
	if id == "" || (role != engine.RoleProvider && role != engine.RoleRequester) {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return engine.Caller{}, false
	}
	return engine.Caller{ID: id, Role: role}, true
}

func (h *SchedulingHandler) writeEngineError(w http.ResponseWriter, err error) {
	var su *engine.SlotUnavailableError
	switch {
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &su):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       su.Error(),
			"conflicts":   toConflictResponse(su.Report).Conflicts,
			"suggestions": toConflictResponse(su.Report).Suggestions,
		})
	case errors.Is(err, engine.ErrInvalidTiming):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     err.Error(),
			"retryable": true,
		})
	default:
		h.logger.Error("scheduling request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID:      a.ID,
		ProviderID:         a.ProviderID,
		RequesterID:        a.RequesterID,
		Date:               model.FormatDate(a.Date),
		StartTime:          model.FormatClock(a.StartMinute),
		EndTime:            model.FormatClock(a.EndMinute()),
		DurationMinutes:    a.DurationMinutes,
		Status:             string(a.Status),
		Notes:              a.Notes,
		ConsultationType:   a.ConsultationType,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          a.UpdatedAt.Format(time.RFC3339),
		CancellationReason: a.CancellationReason,
		RefundStatus:       string(a.RefundStatus),
		RefundAmount:       a.RefundAmount,
		RefundPercent:      a.RefundPercent,
		RemindersSent:      a.RemindersSent,
	}
	if a.CompletedAt != nil {
		item.CompletedAt = a.CompletedAt.Format(time.RFC3339)
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.Format(time.RFC3339)
	}
	return item
}

func toDayItem(d availability.Day) dayItem {
	item := dayItem{
		Date:       model.FormatDate(d.Date),
		WorkingDay: d.WorkingDay,
		Slots:      make([]slotItem, 0, len(d.Slots)),
	}
	for _, s := range d.Slots {
		item.Slots = append(item.Slots, slotItem{
			StartTime:     model.FormatClock(s.StartMinute),
			EndTime:       model.FormatClock(s.EndMinute),
			Available:     s.Available,
			AppointmentID: s.AppointmentID,
		})
	}
	return item
}

func toConflictResponse(report engine.ConflictReport) conflictResponse {
	resp := conflictResponse{Conflict: report.Conflict}
	for _, c := range report.Conflicts {
		resp.Conflicts = append(resp.Conflicts, conflictItem{
			AppointmentID: c.AppointmentID,
			Date:          c.Date,
			StartTime:     c.StartTime,
			EndTime:       c.EndTime,
			Status:        string(c.Status),
		})
	}
	for _, s := range report.Suggestions {
		resp.Suggestions = append(resp.Suggestions, suggestedSlotItem{
			Date:      s.Date,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
