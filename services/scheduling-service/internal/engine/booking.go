package engine

import (
	"context"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

type BookingRequest struct {
	ProviderID       string
	RequesterID      string
	Date             string
	StartTime        string
	DurationMinutes  int
	Notes            string
	ConsultationType string
}

// Book validates a booking request, checks the slot, and atomically
// creates a scheduled appointment with its reminder rows and booked
// event in one transaction. On an occupied or out-of-hours slot the
// returned error is a *SlotUnavailableError carrying the conflicting
// appointments and up to MaxSuggestions free alternatives.
func (e *Engine) Book(ctx context.Context, caller Caller, req BookingRequest) (model.Appointment, error) {
	if req.ProviderID == "" {
		return model.Appointment{}, validationError("provider_id is required")
	}
	if req.RequesterID == "" {
		req.RequesterID = caller.ID
	}
	if caller.Role == RoleRequester && req.RequesterID != caller.ID {
		return model.Appointment{}, ErrForbidden
	}
	day, startMinute, err := parseSlot(req.Date, req.StartTime, req.DurationMinutes)
	if err != nil {
		return model.Appointment{}, err
	}

	now := e.now()
	startAt := day.Add(time.Duration(startMinute) * time.Minute)
	if startAt.Sub(now) < e.leadTime {
		return model.Appointment{}, ErrInvalidTiming
	}

	prof, err := e.profiles.Get(ctx, req.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !prof.Hours.Contains(day.Weekday(), startMinute, startMinute+req.DurationMinutes) {
		return model.Appointment{}, e.outsideWorkingHours(ctx, req.ProviderID, day, req.DurationMinutes, "")
	}

	report, err := e.detectConflict(ctx, req.ProviderID, day, startMinute, req.DurationMinutes, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if report.Conflict {
		return model.Appointment{}, &SlotUnavailableError{Report: report}
	}

	appt := model.Appointment{
		ID:               e.store.NewID(),
		ProviderID:       req.ProviderID,
		RequesterID:      req.RequesterID,
		Date:             day,
		StartMinute:      startMinute,
		DurationMinutes:  req.DurationMinutes,
		Status:           model.StatusScheduled,
		Notes:            req.Notes,
		ConsultationType: req.ConsultationType,
		RefundStatus:     model.RefundNotApplicable,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	evt, err := appointmentEvent(outbox.EventAppointmentBooked, appt, nil)
	if err != nil {
		return model.Appointment{}, err
	}

	created, err := e.store.CreateAppointment(ctx, appt, e.planReminders(appt), evt)
	if err != nil {
		return model.Appointment{}, err
	}
	e.logger.Info("appointment booked",
		"appointment_id", created.ID,
		"provider_id", created.ProviderID,
		"start_at", created.StartAt())
	return created, nil
}

// outsideWorkingHours builds the rejection for a slot that falls outside
// the provider's weekly hours. It still attaches in-hours alternatives
// so the caller can retry immediately.
func (e *Engine) outsideWorkingHours(ctx context.Context, providerID string, day time.Time, durationMinutes int, excludeID string) error {
	appts, err := e.store.ListActive(ctx, providerID, day, day)
	if err != nil {
		return err
	}
	suggestions, err := e.suggestAlternatives(ctx, providerID, day, durationMinutes, excludeID, appts)
	if err != nil {
		return err
	}
	return &SlotUnavailableError{
		Reason: "requested slot is outside the provider's working hours",
		Report: ConflictReport{Suggestions: suggestions},
	}
}
