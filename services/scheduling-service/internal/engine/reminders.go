package engine

import (
	"fmt"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// smsLeadThreshold splits reminder channels: long-lead reminders go out
// on email, short-lead ones on SMS.
const smsLeadThreshold = 12 * time.Hour

// planReminders derives reminder rows for an appointment from the
// configured offsets. Fire times already in the past are skipped, so a
// booking close to its start simply gets fewer reminders. The rows are
// persisted in the same transaction as the appointment itself; delivery
// belongs to the notification subsystem.
func (e *Engine) planReminders(appt model.Appointment) []model.Reminder {
	now := e.now()
	startAt := appt.StartAt()
	var out []model.Reminder
	for _, offset := range e.offsets {
		fireAt := startAt.Add(-offset)
		if !fireAt.After(now) {
			continue
		}
		channel := model.ChannelEmail
		if offset < smsLeadThreshold {
			channel = model.ChannelSMS
		}
		out = append(out, model.Reminder{
			ID:            e.store.NewID(),
			AppointmentID: appt.ID,
			FireAt:        fireAt,
			Channel:       channel,
			Status:        model.ReminderScheduled,
			Message: fmt.Sprintf("Your appointment on %s at %s is coming up",
				model.FormatDate(appt.Date), model.FormatClock(appt.StartMinute)),
			CreatedAt: now,
		})
	}
	return out
}
