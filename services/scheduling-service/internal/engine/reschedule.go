package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

type RescheduleResult struct {
	Old model.Appointment
	New model.Appointment
}

// Reschedule moves an active appointment to a new slot. The old record
// is retired with status rescheduled, a fresh scheduled appointment
// takes its place, and one immutable reschedule record links the two.
// Retire, create, record, reminder swap, and the event all commit in a
// single transaction; on any rejection nothing changes.
func (e *Engine) Reschedule(ctx context.Context, caller Caller, appointmentID, newDate, newStartTime string, durationMinutes int, reason string) (RescheduleResult, error) {
	old, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return RescheduleResult{}, err
	}
	if err := authorizeParty(caller, old); err != nil {
		return RescheduleResult{}, err
	}
	if !old.Status.Active() {
		return RescheduleResult{}, ErrInvalidState
	}

	if durationMinutes <= 0 {
		durationMinutes = old.DurationMinutes
	}
	day, startMinute, err := parseSlot(newDate, newStartTime, durationMinutes)
	if err != nil {
		return RescheduleResult{}, err
	}

	now := e.now()
	startAt := day.Add(time.Duration(startMinute) * time.Minute)
	if startAt.Sub(now) < e.leadTime {
		return RescheduleResult{}, ErrInvalidTiming
	}

	prof, err := e.profiles.Get(ctx, old.ProviderID)
	if err != nil {
		return RescheduleResult{}, err
	}
	if !prof.Hours.Contains(day.Weekday(), startMinute, startMinute+durationMinutes) {
		return RescheduleResult{}, e.outsideWorkingHours(ctx, old.ProviderID, day, durationMinutes, old.ID)
	}

	// The appointment being moved never conflicts with itself.
	report, err := e.detectConflict(ctx, old.ProviderID, day, startMinute, durationMinutes, old.ID)
	if err != nil {
		return RescheduleResult{}, err
	}
	if report.Conflict {
		return RescheduleResult{}, &SlotUnavailableError{Report: report}
	}

	replacement := model.Appointment{
		ID:               e.store.NewID(),
		ProviderID:       old.ProviderID,
		RequesterID:      old.RequesterID,
		Date:             day,
		StartMinute:      startMinute,
		DurationMinutes:  durationMinutes,
		Status:           model.StatusScheduled,
		Notes:            old.Notes,
		ConsultationType: old.ConsultationType,
		RefundStatus:     model.RefundNotApplicable,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	retired := old
	retired.Status = model.StatusRescheduled
	retired.CancellationReason = fmt.Sprintf("Rescheduled to %s %s",
		model.FormatDate(day), model.FormatClock(startMinute))
	retired.UpdatedAt = now

	rec := model.RescheduleRecord{
		ID:               e.store.NewID(),
		OldAppointmentID: old.ID,
		NewAppointmentID: replacement.ID,
		Reason:           reason,
		CreatedAt:        now,
	}

	evt, err := appointmentEvent(outbox.EventAppointmentRescheduled, replacement, map[string]any{
		"previous_appointment_id": old.ID,
		"reason":                  reason,
	})
	if err != nil {
		return RescheduleResult{}, err
	}

	oldOut, newOut, err := e.store.Reschedule(ctx, retired, replacement, rec, e.planReminders(replacement), evt)
	if err != nil {
		return RescheduleResult{}, err
	}
	e.logger.Info("appointment rescheduled",
		"old_appointment_id", oldOut.ID,
		"new_appointment_id", newOut.ID,
		"start_at", newOut.StartAt())
	return RescheduleResult{Old: oldOut, New: newOut}, nil
}

type BulkRescheduleResult struct {
	Moved      []RescheduleResult
	TotalFound int
}

// BulkReschedule moves every still-scheduled appointment the provider
// has on oldDate to the same start time on newDate. Each move runs as
// its own Reschedule; ones that cannot land (lead time, conflicts,
// outside working hours) are skipped rather than failing the batch.
func (e *Engine) BulkReschedule(ctx context.Context, caller Caller, oldDate, newDate, reason string) (BulkRescheduleResult, error) {
	if caller.Role != RoleProvider {
		return BulkRescheduleResult{}, ErrForbidden
	}
	oldDay, err := model.ParseDate(oldDate)
	if err != nil {
		return BulkRescheduleResult{}, validationError(err.Error())
	}
	if _, err := model.ParseDate(newDate); err != nil {
		return BulkRescheduleResult{}, validationError(err.Error())
	}

	appts, err := e.store.ListActive(ctx, caller.ID, oldDay, oldDay)
	if err != nil {
		return BulkRescheduleResult{}, err
	}

	var out BulkRescheduleResult
	for _, appt := range appts {
		if appt.Status != model.StatusScheduled {
			continue
		}
		out.TotalFound++
		res, err := e.Reschedule(ctx, caller, appt.ID, newDate, model.FormatClock(appt.StartMinute), appt.DurationMinutes, reason)
		if err != nil {
			e.logger.Warn("bulk reschedule skipped appointment",
				"appointment_id", appt.ID, "err", err)
			continue
		}
		out.Moved = append(out.Moved, res)
	}

	e.logger.Info("bulk reschedule finished",
		"provider_id", caller.ID,
		"old_date", oldDate,
		"new_date", newDate,
		"moved", len(out.Moved),
		"total_found", out.TotalFound)
	return out, nil
}
