package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types published by the scheduling service. The payment subsystem
// consumes cancellation events (they carry the refund decision); the
// notification subsystem consumes due-reminder events.
const (
	EventAppointmentBooked      = "scheduling.appointment.booked.v1"
	EventAppointmentCancelled   = "scheduling.appointment.cancelled.v1"
	EventAppointmentRescheduled = "scheduling.appointment.rescheduled.v1"
	EventAppointmentCompleted   = "scheduling.appointment.completed.v1"
	EventAppointmentConfirmed   = "scheduling.appointment.confirmed.v1"
	EventAppointmentNoShow      = "scheduling.appointment.no_show.v1"
	EventReminderDue            = "scheduling.reminder.due.v1"
)
