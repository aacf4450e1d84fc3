package engine

import (
	"context"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/availability"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

type ConflictSummary struct {
	AppointmentID string
	Date          string
	StartTime     string
	EndTime       string
	Status        model.Status
}

type SuggestedSlot struct {
	Date      string
	StartTime string
	EndTime   string
}

type ConflictReport struct {
	Conflict    bool
	Conflicts   []ConflictSummary
	Suggestions []SuggestedSlot
}

// DetectConflict tests a candidate (provider, date, start, duration)
// against the provider's active appointments and, on conflict, attaches
// up to MaxSuggestions free alternative slots on the same date. It is a
// pure query: no mutation, safe to call concurrently.
func (e *Engine) DetectConflict(ctx context.Context, providerID, date, startTime string, durationMinutes int, excludeID string) (ConflictReport, error) {
	if providerID == "" {
		return ConflictReport{}, validationError("provider_id is required")
	}
	day, startMinute, err := parseSlot(date, startTime, durationMinutes)
	if err != nil {
		return ConflictReport{}, err
	}
	return e.detectConflict(ctx, providerID, day, startMinute, durationMinutes, excludeID)
}

func (e *Engine) detectConflict(ctx context.Context, providerID string, day time.Time, startMinute, durationMinutes int, excludeID string) (ConflictReport, error) {
	appts, err := e.store.ListActive(ctx, providerID, day, day)
	if err != nil {
		return ConflictReport{}, err
	}

	endMinute := startMinute + durationMinutes
	var report ConflictReport
	for _, a := range appts {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.OverlapsMinutes(startMinute, endMinute) {
			report.Conflict = true
			report.Conflicts = append(report.Conflicts, ConflictSummary{
				AppointmentID: a.ID,
				Date:          model.FormatDate(a.Date),
				StartTime:     model.FormatClock(a.StartMinute),
				EndTime:       model.FormatClock(a.EndMinute()),
				Status:        a.Status,
			})
		}
	}

	if report.Conflict {
		report.Suggestions, err = e.suggestAlternatives(ctx, providerID, day, durationMinutes, excludeID, appts)
		if err != nil {
			return ConflictReport{}, err
		}
	}
	return report, nil
}

// suggestAlternatives reuses the already-fetched day appointments: the
// availability grid is computed once, no per-slot re-querying.
func (e *Engine) suggestAlternatives(ctx context.Context, providerID string, day time.Time, durationMinutes int, excludeID string, appts []model.Appointment) ([]SuggestedSlot, error) {
	prof, err := e.profiles.Get(ctx, providerID)
	if err != nil {
		return nil, err
	}

	filtered := appts[:0:0]
	for _, a := range appts {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		filtered = append(filtered, a)
	}

	days := availability.Grid(prof.Hours, filtered, day, day, durationMinutes)
	if len(days) == 0 {
		return nil, nil
	}

	var out []SuggestedSlot
	for _, startMinute := range availability.AvailableStarts(days[0], e.now()) {
		if len(out) >= e.maxSuggestions {
			break
		}
		out = append(out, SuggestedSlot{
			Date:      model.FormatDate(day),
			StartTime: model.FormatClock(startMinute),
			EndTime:   model.FormatClock(startMinute + durationMinutes),
		})
	}
	return out, nil
}

// parseSlot validates the civil date, clock time, and duration of a
// candidate slot.
func parseSlot(date, startTime string, durationMinutes int) (time.Time, int, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return time.Time{}, 0, validationError(err.Error())
	}
	startMinute, err := model.ParseClock(startTime)
	if err != nil {
		return time.Time{}, 0, validationError(err.Error())
	}
	if durationMinutes < model.MinDurationMinutes || durationMinutes > model.MaxDurationMinutes {
		return time.Time{}, 0, validationError("duration_minutes must be between 15 and 180")
	}
	if startMinute+durationMinutes > 24*60 {
		return time.Time{}, 0, validationError("appointment must not cross midnight")
	}
	return d, startMinute, nil
}
