package engine

import (
	"encoding/json"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

// appointmentEvent builds the outbox envelope for an appointment
// lifecycle event. extra entries are merged into the base payload.
func appointmentEvent(eventType string, appt model.Appointment, extra map[string]any) (outbox.Event, error) {
	payload := map[string]any{
		"appointment_id":   appt.ID,
		"provider_id":      appt.ProviderID,
		"requester_id":     appt.RequesterID,
		"date":             model.FormatDate(appt.Date),
		"start_time":       model.FormatClock(appt.StartMinute),
		"end_time":         model.FormatClock(appt.EndMinute()),
		"duration_minutes": appt.DurationMinutes,
		"status":           string(appt.Status),
		"start_at":         appt.StartAt().Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}
