package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/dispatch"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/profile"
)

type providerUpdatedEvent struct {
	ProviderID      string  `json:"provider_id"`
	DisplayName     string  `json:"display_name"`
	Timezone        string  `json:"timezone"`
	ConsultationFee float64 `json:"consultation_fee"`
	WorkingHours    []struct {
		Weekday     int `json:"weekday"`
		StartMinute int `json:"start_minute"`
		EndMinute   int `json:"end_minute"`
	} `json:"working_hours"`
}

// ProfileUpdatedHandler applies profile.provider.updated.v1 events to the
// local provider read model.
func ProfileUpdatedHandler(profiles *profile.Repository, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt providerUpdatedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return err
		}
		if evt.ProviderID == "" {
			logger.Warn("provider update without provider_id ignored")
			return nil
		}

		prof := profile.ProviderProfile{
			ProviderID:      evt.ProviderID,
			DisplayName:     evt.DisplayName,
			Timezone:        evt.Timezone,
			ConsultationFee: evt.ConsultationFee,
			Hours:           model.WeeklyHours{},
		}
		for _, wh := range evt.WorkingHours {
			day := time.Weekday(wh.Weekday)
			prof.Hours[day] = append(prof.Hours[day], model.TimeRange{
				StartMinute: wh.StartMinute,
				EndMinute:   wh.EndMinute,
			})
		}
		if err := profiles.Upsert(ctx, prof); err != nil {
			return err
		}
		logger.Info("provider profile updated", "provider_id", evt.ProviderID)
		return nil
	}
}

type notificationReceiptEvent struct {
	ReminderID string `json:"reminder_id"`
}

// NotificationReceiptHandler applies notification delivery receipts to
// reminder rows: delivered moves the reminder to sent, otherwise failed.
func NotificationReceiptHandler(repo *dispatch.Repository, logger *slog.Logger, delivered bool) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt notificationReceiptEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return err
		}
		if evt.ReminderID == "" {
			return nil
		}
		if delivered {
			return repo.MarkSent(ctx, evt.ReminderID)
		}
		if err := repo.MarkFailed(ctx, evt.ReminderID); err != nil {
			return err
		}
		logger.Warn("reminder delivery failed", "reminder_id", evt.ReminderID)
		return nil
	}
}
