package engine

import (
	"context"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/availability"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// maxAvailabilityDays bounds a single availability query so the read path
// stays a single bounded pass over the store.
const maxAvailabilityDays = 62

type AvailabilityReport struct {
	ProviderID     string
	StartDate      string
	EndDate        string
	SlotMinutes    int
	Days           []availability.Day
	TotalAvailable int
}

// Availability computes the per-day slot grid for a provider over an
// inclusive civil date range. It is a lock-free read: the view may be
// slightly stale and booking re-validates regardless.
func (e *Engine) Availability(ctx context.Context, providerID, startDate, endDate string, slotMinutes int) (AvailabilityReport, error) {
	if providerID == "" {
		return AvailabilityReport{}, validationError("provider_id is required")
	}
	from, err := model.ParseDate(startDate)
	if err != nil {
		return AvailabilityReport{}, validationError(err.Error())
	}
	to, err := model.ParseDate(endDate)
	if err != nil {
		return AvailabilityReport{}, validationError(err.Error())
	}
	if to.Before(from) {
		return AvailabilityReport{}, validationError("end_date must not be before start_date")
	}
	if to.Sub(from) > maxAvailabilityDays*24*time.Hour {
		return AvailabilityReport{}, validationError("date range too large")
	}
	if slotMinutes == 0 {
		slotMinutes = e.slotMinutes
	}
	if slotMinutes < model.MinDurationMinutes || slotMinutes > model.MaxDurationMinutes {
		return AvailabilityReport{}, validationError("slot_minutes must be between 15 and 180")
	}

	prof, err := e.profiles.Get(ctx, providerID)
	if err != nil {
		return AvailabilityReport{}, err
	}
	appts, err := e.store.ListActive(ctx, providerID, from, to)
	if err != nil {
		return AvailabilityReport{}, err
	}

	days := availability.Grid(prof.Hours, appts, from, to, slotMinutes)
	report := AvailabilityReport{
		ProviderID:  providerID,
		StartDate:   model.FormatDate(from),
		EndDate:     model.FormatDate(to),
		SlotMinutes: slotMinutes,
		Days:        days,
	}
	for _, d := range days {
		for _, s := range d.Slots {
			if s.Available {
				report.TotalAvailable++
			}
		}
	}
	return report, nil
}
