package engine

import (
	"context"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Get returns an appointment to one of its parties.
func (e *Engine) Get(ctx context.Context, caller Caller, appointmentID string) (model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := authorizeParty(caller, appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Confirm moves a scheduled appointment to confirmed. Either party may
// confirm.
func (e *Engine) Confirm(ctx context.Context, caller Caller, appointmentID string) (model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := authorizeParty(caller, appt); err != nil {
		return model.Appointment{}, err
	}
	if appt.Status != model.StatusScheduled {
		return model.Appointment{}, ErrInvalidState
	}

	appt.Status = model.StatusConfirmed
	appt.UpdatedAt = e.now()

	evt, err := appointmentEvent(outbox.EventAppointmentConfirmed, appt, nil)
	if err != nil {
		return model.Appointment{}, err
	}
	return e.store.UpdateAppointment(ctx, appt, false, evt)
}

// Complete marks an active appointment completed. Provider only. Notes,
// when supplied, replace the appointment's notes.
func (e *Engine) Complete(ctx context.Context, caller Caller, appointmentID, notes string) (model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if caller.Role != RoleProvider || caller.ID != appt.ProviderID {
		return model.Appointment{}, ErrForbidden
	}
	if !appt.Status.Active() {
		return model.Appointment{}, ErrInvalidState
	}

	now := e.now()
	completedAt := now
	appt.Status = model.StatusCompleted
	appt.CompletedAt = &completedAt
	appt.UpdatedAt = now
	if notes != "" {
		appt.Notes = notes
	}

	evt, err := appointmentEvent(outbox.EventAppointmentCompleted, appt, nil)
	if err != nil {
		return model.Appointment{}, err
	}
	updated, err := e.store.UpdateAppointment(ctx, appt, true, evt)
	if err != nil {
		return model.Appointment{}, err
	}
	e.logger.Info("appointment completed", "appointment_id", updated.ID)
	return updated, nil
}

// MarkNoShow records that the requester did not attend. Provider only,
// and only once the start time has passed.
func (e *Engine) MarkNoShow(ctx context.Context, caller Caller, appointmentID string) (model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if caller.Role != RoleProvider || caller.ID != appt.ProviderID {
		return model.Appointment{}, ErrForbidden
	}
	if !appt.Status.Active() {
		return model.Appointment{}, ErrInvalidState
	}
	now := e.now()
	if !now.After(appt.StartAt()) {
		return model.Appointment{}, ErrInvalidTiming
	}

	appt.Status = model.StatusNoShow
	appt.UpdatedAt = now

	evt, err := appointmentEvent(outbox.EventAppointmentNoShow, appt, nil)
	if err != nil {
		return model.Appointment{}, err
	}
	return e.store.UpdateAppointment(ctx, appt, true, evt)
}

// ListRequesterAppointments returns the caller's own appointments,
// newest first, capped at maxListLimit.
func (e *Engine) ListRequesterAppointments(ctx context.Context, caller Caller, limit int) ([]model.Appointment, error) {
	if caller.Role != RoleRequester {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return e.store.ListByRequester(ctx, caller.ID, limit)
}

// ListProviderSchedule returns the provider's own appointments in an
// inclusive civil date range, ordered by start.
func (e *Engine) ListProviderSchedule(ctx context.Context, caller Caller, startDate, endDate string) ([]model.Appointment, error) {
	if caller.Role != RoleProvider {
		return nil, ErrForbidden
	}
	from, err := model.ParseDate(startDate)
	if err != nil {
		return nil, validationError(err.Error())
	}
	to, err := model.ParseDate(endDate)
	if err != nil {
		return nil, validationError(err.Error())
	}
	if to.Before(from) {
		return nil, validationError("end_date must not be before start_date")
	}
	if to.Sub(from) > maxAvailabilityDays*24*time.Hour {
		return nil, validationError("date range too large")
	}
	return e.store.ListByProvider(ctx, caller.ID, from, to)
}
