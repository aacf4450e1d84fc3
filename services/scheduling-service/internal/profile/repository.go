package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mediflow/scheduling/libs/db"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// Repository is the local read model of the provider-profile subsystem,
// kept fresh by consuming its update events. Unknown providers fall back
// to the default profile so availability queries never hard-fail on a
// missing row.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lookup returns the stored snapshot and whether a row exists.
func (r *Repository) Lookup(ctx context.Context, providerID string) (ProviderProfile, bool, error) {
	prof := Default(providerID)
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(display_name, ''), COALESCE(timezone, 'UTC'), consultation_fee
		FROM provider_profiles
		WHERE provider_id = $1
	`, providerID).Scan(&prof.DisplayName, &prof.Timezone, &prof.ConsultationFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProviderProfile{}, false, nil
	}
	if err != nil {
		return ProviderProfile{}, false, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM provider_working_hours
		WHERE provider_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, providerID)
	if err != nil {
		return ProviderProfile{}, false, err
	}
	defer rows.Close()

	hours := model.WeeklyHours{}
	for rows.Next() {
		var weekday, start, end int
		if err := rows.Scan(&weekday, &start, &end); err != nil {
			return ProviderProfile{}, false, err
		}
		day := time.Weekday(weekday)
		hours[day] = append(hours[day], model.TimeRange{StartMinute: start, EndMinute: end})
	}
	if rows.Err() != nil {
		return ProviderProfile{}, false, rows.Err()
	}
	if len(hours) > 0 {
		prof.Hours = hours
	}
	return prof, true, nil
}

// Upsert replaces the stored snapshot for one provider. Called from the
// profile event consumer, never from request handlers.
func (r *Repository) Upsert(ctx context.Context, prof ProviderProfile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO provider_profiles (provider_id, display_name, timezone, consultation_fee, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (provider_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			timezone = EXCLUDED.timezone,
			consultation_fee = EXCLUDED.consultation_fee,
			updated_at = now()
	`, prof.ProviderID, prof.DisplayName, prof.Timezone, prof.ConsultationFee); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM provider_working_hours WHERE provider_id = $1
	`, prof.ProviderID); err != nil {
		return err
	}
	for weekday, ranges := range prof.Hours {
		for _, tr := range ranges {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_working_hours (provider_id, weekday, start_minute, end_minute)
				VALUES ($1, $2, $3, $4)
			`, prof.ProviderID, int(weekday), tr.StartMinute, tr.EndMinute); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}
