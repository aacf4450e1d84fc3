package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mediflow/scheduling/libs/db"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/engine"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

// AppointmentStore is the postgres implementation of engine.Store. The
// write paths serialize same-provider mutations with a transaction-scoped
// advisory lock and re-check overlap inside the transaction; the
// appointments table additionally carries an exclusion constraint on
// (provider_id, date, active status, minute range) as a backstop, so a
// lost race can only surface as a constraint violation, never as two
// overlapping active rows.
type AppointmentStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentStore(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentStore {
	return &AppointmentStore{pool: pool, outbox: outboxRepo}
}

func (s *AppointmentStore) NewID() string {
	return uuid.NewString()
}

const appointmentColumns = `
	id, provider_id, requester_id, date, start_minute, duration_minutes,
	status, COALESCE(notes, ''), COALESCE(consultation_type, ''),
	created_at, updated_at, completed_at, cancelled_at,
	COALESCE(cancellation_reason, ''), refund_status, refund_amount,
	refund_percent, reminders_sent`

func (s *AppointmentStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	appt, err := scanAppointment(row)
	if IsNotFound(err) {
		return model.Appointment{}, engine.ErrNotFound
	}
	return appt, err
}

func (s *AppointmentStore) ListActive(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND status = ANY($2)
			AND date BETWEEN $3 AND $4
		ORDER BY date ASC, start_minute ASC
	`, providerID, activeStatuses(), from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *AppointmentStore) ListByRequester(ctx context.Context, requesterID string, limit int) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1
		ORDER BY date DESC, start_minute DESC
		LIMIT $2
	`, requesterID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *AppointmentStore) ListByProvider(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND date BETWEEN $2 AND $3
		ORDER BY date ASC, start_minute ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *AppointmentStore) CreateAppointment(ctx context.Context, appt model.Appointment, reminders []model.Reminder, evt outbox.Event) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProvider(ctx, tx, appt.ProviderID); err != nil {
		return model.Appointment{}, err
	}
	taken, err := s.slotTaken(ctx, tx, appt, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if taken {
		return model.Appointment{}, engine.ErrSlotUnavailable
	}

	if err := s.insertAppointment(ctx, tx, appt); err != nil {
		if IsConflict(err) {
			return model.Appointment{}, engine.ErrConcurrencyConflict
		}
		return model.Appointment{}, err
	}
	if err := s.insertReminders(ctx, tx, reminders); err != nil {
		return model.Appointment{}, err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *AppointmentStore) UpdateAppointment(ctx context.Context, appt model.Appointment, cancelReminders bool, evt outbox.Event) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			notes = $3,
			updated_at = $4,
			completed_at = $5,
			cancelled_at = $6,
			cancellation_reason = $7,
			refund_status = $8,
			refund_amount = $9,
			refund_percent = $10
		WHERE id = $1
	`, appt.ID, appt.Status, appt.Notes, appt.UpdatedAt, appt.CompletedAt,
		appt.CancelledAt, appt.CancellationReason, appt.RefundStatus,
		appt.RefundAmount, appt.RefundPercent)
	if err != nil {
		return model.Appointment{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.Appointment{}, engine.ErrNotFound
	}

	if cancelReminders {
		if err := s.cancelReminders(ctx, tx, appt.ID); err != nil {
			return model.Appointment{}, err
		}
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *AppointmentStore) Reschedule(ctx context.Context, old, replacement model.Appointment, rec model.RescheduleRecord, reminders []model.Reminder, evt outbox.Event) (model.Appointment, model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProvider(ctx, tx, replacement.ProviderID); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	taken, err := s.slotTaken(ctx, tx, replacement, old.ID)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if taken {
		return model.Appointment{}, model.Appointment{}, engine.ErrSlotUnavailable
	}

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			cancellation_reason = $3,
			updated_at = $4
		WHERE id = $1
	`, old.ID, old.Status, old.CancellationReason, old.UpdatedAt)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.Appointment{}, model.Appointment{}, engine.ErrNotFound
	}

	if err := s.insertAppointment(ctx, tx, replacement); err != nil {
		if IsConflict(err) {
			return model.Appointment{}, model.Appointment{}, engine.ErrConcurrencyConflict
		}
		return model.Appointment{}, model.Appointment{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO reschedule_records (id, old_appointment_id, new_appointment_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.OldAppointmentID, rec.NewAppointmentID, rec.Reason, rec.CreatedAt); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}

	if err := s.cancelReminders(ctx, tx, old.ID); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if err := s.insertReminders(ctx, tx, reminders); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if err := s.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	return old, replacement, nil
}

// lockProvider serializes write paths for one provider. The lock is
// transaction-scoped and released on commit/rollback.
func (s *AppointmentStore) lockProvider(ctx context.Context, tx pgx.Tx, providerID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, providerID)
	return err
}

func (s *AppointmentStore) slotTaken(ctx context.Context, tx pgx.Tx, appt model.Appointment, excludeID string) (bool, error) {
	var id string
	err := tx.QueryRow(ctx, `
		SELECT id
		FROM appointments
		WHERE provider_id = $1
			AND date = $2
			AND status = ANY($3)
			AND start_minute < $5
			AND start_minute + duration_minutes > $4
			AND ($6 = '' OR id <> $6)
		LIMIT 1
	`, appt.ProviderID, appt.Date, activeStatuses(),
		appt.StartMinute, appt.EndMinute(), excludeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AppointmentStore) insertAppointment(ctx context.Context, tx pgx.Tx, appt model.Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, provider_id, requester_id, date, start_minute, duration_minutes,
			status, notes, consultation_type, created_at, updated_at,
			refund_status, refund_amount, refund_percent, reminders_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, '{}')
	`, appt.ID, appt.ProviderID, appt.RequesterID, appt.Date, appt.StartMinute,
		appt.DurationMinutes, appt.Status, appt.Notes, appt.ConsultationType,
		appt.CreatedAt, appt.UpdatedAt, appt.RefundStatus, appt.RefundAmount,
		appt.RefundPercent)
	return err
}

func (s *AppointmentStore) insertReminders(ctx context.Context, tx pgx.Tx, reminders []model.Reminder) error {
	for _, r := range reminders {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reminders (id, appointment_id, fire_at, channel, status, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.ID, r.AppointmentID, r.FireAt, r.Channel, r.Status, r.Message, r.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *AppointmentStore) cancelReminders(ctx context.Context, tx pgx.Tx, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET status = 'cancelled'
		WHERE appointment_id = $1 AND status = 'scheduled'
	`, appointmentID)
	return err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.RequesterID,
		&appt.Date,
		&appt.StartMinute,
		&appt.DurationMinutes,
		&appt.Status,
		&appt.Notes,
		&appt.ConsultationType,
		&appt.CreatedAt,
		&appt.UpdatedAt,
		&appt.CompletedAt,
		&appt.CancelledAt,
		&appt.CancellationReason,
		&appt.RefundStatus,
		&appt.RefundAmount,
		&appt.RefundPercent,
		&appt.RemindersSent,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Date = appt.Date.UTC()
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func activeStatuses() []string {
	out := make([]string, len(model.ActiveStatuses))
	for i, s := range model.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
