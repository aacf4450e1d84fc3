package model

import "time"

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// ActiveStatuses are the statuses that hold a provider's time and
// therefore participate in conflict detection.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress}

func (s Status) Active() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundNotApplicable RefundStatus = "not_applicable"
	RefundPending       RefundStatus = "pending"
	RefundProcessed     RefundStatus = "processed"
	RefundFailed        RefundStatus = "failed"
)

// Appointment is the central record. Schedule fields use a civil date
// (midnight UTC) plus minutes from midnight; the end is always
// StartMinute+DurationMinutes and is never stored separately.
type Appointment struct {
	ID               string
	ProviderID       string
	RequesterID      string
	Date             time.Time
	StartMinute      int
	DurationMinutes  int
	Status           Status
	Notes            string
	ConsultationType string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancellationReason string
	RefundStatus       RefundStatus
	RefundAmount       float64
	RefundPercent      float64

	RemindersSent []string
}

func (a *Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

func (a *Appointment) StartAt() time.Time {
	return a.Date.Add(time.Duration(a.StartMinute) * time.Minute)
}

func (a *Appointment) EndAt() time.Time {
	return a.Date.Add(time.Duration(a.EndMinute()) * time.Minute)
}

// OverlapsMinutes reports whether the appointment's [start,end) interval
// shares at least one instant with [startMinute,endMinute) on the same date.
func (a *Appointment) OverlapsMinutes(startMinute, endMinute int) bool {
	return a.StartMinute < endMinute && startMinute < a.EndMinute()
}

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 180
)

type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

type ReminderChannel string

const (
	ChannelEmail ReminderChannel = "email"
	ChannelSMS   ReminderChannel = "sms"
	ChannelPush  ReminderChannel = "push"
)

// Reminder is created at booking/reschedule time and consumed by the
// external notification subsystem once its fire time arrives.
type Reminder struct {
	ID            string
	AppointmentID string
	FireAt        time.Time
	Channel       ReminderChannel
	Status        ReminderStatus
	Message       string
	CreatedAt     time.Time
}

// RescheduleRecord is the immutable audit link written once per
// reschedule. It is never updated or deleted.
type RescheduleRecord struct {
	ID               string
	OldAppointmentID string
	NewAppointmentID string
	Reason           string
	CreatedAt        time.Time
}
