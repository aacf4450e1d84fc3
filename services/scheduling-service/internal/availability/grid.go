package availability

import (
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// Slot is a fixed-duration candidate interval within a provider's working
// hours. Occupied slots carry the id of the appointment holding them.
type Slot struct {
	StartMinute   int
	EndMinute     int
	Available     bool
	AppointmentID string
}

// Day is one date's slot grid. A non-working day has WorkingDay false and
// an empty slot list.
type Day struct {
	Date       time.Time
	WorkingDay bool
	Slots      []Slot
}

// Grid computes the day-by-day slot grid for [from,to] (inclusive civil
// dates) from a weekly working-hours template and the provider's
// appointments in that range. Only active appointments occupy slots;
// cancelled/completed/no-show records never block. The walk is a single
// pass: appointments are bucketed by date once, then each working range
// is stepped in slotMinutes increments. Output ordering is deterministic,
// ascending by date and start time.
func Grid(hours model.WeeklyHours, appts []model.Appointment, from, to time.Time, slotMinutes int) []Day {
	if slotMinutes <= 0 {
		slotMinutes = 30
	}

	byDate := make(map[string][]model.Appointment)
	for _, a := range appts {
		if !a.Status.Active() {
			continue
		}
		key := model.FormatDate(a.Date)
		byDate[key] = append(byDate[key], a)
	}

	var days []Day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		ranges := hours[d.Weekday()]
		day := Day{Date: d, WorkingDay: len(ranges) > 0}
		booked := byDate[model.FormatDate(d)]
		for _, r := range ranges {
			for start := r.StartMinute; start+slotMinutes <= r.EndMinute; start += slotMinutes {
				slot := Slot{
					StartMinute: start,
					EndMinute:   start + slotMinutes,
					Available:   true,
				}
				for _, a := range booked {
					// Half-open intervals: [start,end) overlaps iff start < a.end && a.start < end.
					if a.OverlapsMinutes(slot.StartMinute, slot.EndMinute) {
						slot.Available = false
						slot.AppointmentID = a.ID
						break
					}
				}
				day.Slots = append(day.Slots, slot)
			}
		}
		days = append(days, day)
	}
	return days
}

// AvailableStarts filters a single day's grid down to the start minutes of
// free slots, skipping slots that begin before now. It backs conflict
// suggestions.
func AvailableStarts(day Day, now time.Time) []int {
	var starts []int
	for _, s := range day.Slots {
		if !s.Available {
			continue
		}
		if day.Date.Add(time.Duration(s.StartMinute) * time.Minute).Before(now) {
			continue
		}
		starts = append(starts, s.StartMinute)
	}
	return starts
}
