package engine

import (
	"context"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/profile"
)

// Store is the appointment store the engine runs against. Write methods
// are transactional: the appointment mutation, reminder rows, and outbox
// event land atomically or not at all. CreateAppointment and Reschedule
// additionally guarantee the no-double-booking invariant: they serialize
// same-provider writes, re-check overlap inside the critical section, and
// return ErrSlotUnavailable when the slot was taken meanwhile or
// ErrConcurrencyConflict when a constraint race was lost anyway.
type Store interface {
	// NewID mints a store-owned opaque identifier.
	NewID() string

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)

	// ListActive returns the provider's active appointments whose civil
	// date falls in [from,to], ordered by date and start time.
	ListActive(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)

	ListByRequester(ctx context.Context, requesterID string, limit int) ([]model.Appointment, error)
	ListByProvider(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)

	CreateAppointment(ctx context.Context, appt model.Appointment, reminders []model.Reminder, evt outbox.Event) (model.Appointment, error)

	// UpdateAppointment persists status/refund/lifecycle fields of an
	// existing appointment. When cancelReminders is set, the appointment's
	// still-scheduled reminders move to cancelled in the same transaction.
	UpdateAppointment(ctx context.Context, appt model.Appointment, cancelReminders bool, evt outbox.Event) (model.Appointment, error)

	// Reschedule retires old and creates replacement as one logical
	// operation, writes the immutable link record, cancels the old
	// appointment's pending reminders, and schedules the new ones.
	Reschedule(ctx context.Context, old, replacement model.Appointment, rec model.RescheduleRecord, reminders []model.Reminder, evt outbox.Event) (model.Appointment, model.Appointment, error)
}

// Profiles is the read-only view of the external provider-profile
// subsystem: weekly working hours and the base consultation fee. The
// snapshot may be slightly stale; booking re-validates against the
// appointment store regardless.
type Profiles interface {
	Get(ctx context.Context, providerID string) (profile.ProviderProfile, error)
}
