package engine

import (
	"context"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

// Cancel transitions an active appointment to cancelled and records the
// refund decision. Requester-initiated cancellations follow the
// time-tiered policy; provider-initiated ones refund in full. Pending
// reminders are cancelled in the same transaction, and the cancelled
// event carries the refund decision for the payment subsystem.
func (e *Engine) Cancel(ctx context.Context, caller Caller, appointmentID, reason string) (model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := authorizeParty(caller, appt); err != nil {
		return model.Appointment{}, err
	}
	if !appt.Status.Active() {
		return model.Appointment{}, ErrInvalidState
	}

	prof, err := e.profiles.Get(ctx, appt.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}

	now := e.now()
	decision := refundFor(now, appt.StartAt(), prof.ConsultationFee)
	if caller.Role == RoleProvider {
		decision = fullRefund(prof.ConsultationFee)
	}

	cancelledAt := now
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt
	appt.CancellationReason = reason
	appt.RefundStatus = decision.Status
	appt.RefundAmount = decision.Amount
	appt.RefundPercent = decision.Percent
	appt.UpdatedAt = now

	evt, err := appointmentEvent(outbox.EventAppointmentCancelled, appt, map[string]any{
		"cancellation_reason": reason,
		"cancelled_by":        string(caller.Role),
		"refund_status":       string(decision.Status),
		"refund_percent":      decision.Percent,
		"refund_amount":       decision.Amount,
	})
	if err != nil {
		return model.Appointment{}, err
	}

	updated, err := e.store.UpdateAppointment(ctx, appt, true, evt)
	if err != nil {
		return model.Appointment{}, err
	}
	e.logger.Info("appointment cancelled",
		"appointment_id", updated.ID,
		"refund_percent", decision.Percent,
		"refund_amount", decision.Amount)
	return updated, nil
}

// authorizeParty admits exactly the two parties of the appointment.
func authorizeParty(caller Caller, appt model.Appointment) error {
	switch caller.Role {
	case RoleProvider:
		if caller.ID == appt.ProviderID {
			return nil
		}
	case RoleRequester:
		if caller.ID == appt.RequesterID {
			return nil
		}
	}
	return ErrForbidden
}
