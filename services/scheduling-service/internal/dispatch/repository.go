package dispatch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mediflow/scheduling/libs/db"
)

// DueReminder is a reminder whose fire time has arrived, joined with the
// appointment parties the notification needs.
type DueReminder struct {
	ID            string
	AppointmentID string
	ProviderID    string
	RequesterID   string
	FireAt        time.Time
	Channel       string
	Message       string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchDue claims a batch of due reminders. SKIP LOCKED keeps multiple
// worker replicas from processing the same rows.
func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]DueReminder, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.id, r.appointment_id, a.provider_id, a.requester_id,
			r.fire_at, r.channel, r.message
		FROM reminders r
		JOIN appointments a ON a.id = r.appointment_id
		WHERE r.status = 'scheduled'
			AND r.dispatched_at IS NULL
			AND r.fire_at <= now()
		ORDER BY r.fire_at ASC
		LIMIT $1
		FOR UPDATE OF r SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueReminder
	for rows.Next() {
		var d DueReminder
		if err := rows.Scan(&d.ID, &d.AppointmentID, &d.ProviderID, &d.RequesterID,
			&d.FireAt, &d.Channel, &d.Message); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return due, nil
}

// MarkDispatched stamps the claimed reminders and records their ids on
// the owning appointments.
func (r *Repository) MarkDispatched(ctx context.Context, tx pgx.Tx, due []DueReminder) error {
	for _, d := range due {
		if _, err := tx.Exec(ctx, `
			UPDATE reminders SET dispatched_at = now() WHERE id = $1
		`, d.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET reminders_sent = array_append(reminders_sent, $2)
			WHERE id = $1
		`, d.AppointmentID, d.ID); err != nil {
			return err
		}
	}
	return nil
}

// MarkSent records a delivery receipt from the notification subsystem.
func (r *Repository) MarkSent(ctx context.Context, reminderID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders SET status = 'sent' WHERE id = $1 AND status = 'scheduled'
	`, reminderID)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, reminderID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders SET status = 'failed' WHERE id = $1 AND status = 'scheduled'
	`, reminderID)
	return err
}
