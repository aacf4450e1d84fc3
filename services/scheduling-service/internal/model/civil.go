package model

import (
	"fmt"
	"time"
)

// Civil date/time handling: the API exchanges ISO-8601 dates (YYYY-MM-DD)
// and 24-hour clock times (HH:MM) in a single implied timezone per
// provider. Dates are normalized to midnight UTC; clock times are minutes
// from midnight.

const DateLayout = "2006-01-02"

func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// TimeRange is a half-open [StartMinute,EndMinute) window within a day.
type TimeRange struct {
	StartMinute int
	EndMinute   int
}

// WeeklyHours maps weekday to the ordered, disjoint ranges during which
// bookings are permitted. A missing or empty entry means the provider
// does not work that day.
type WeeklyHours map[time.Weekday][]TimeRange

// DefaultWeeklyHours is the fallback schedule when a provider profile has
// not been synced yet: Mon-Fri 09:00-17:00, weekend closed.
func DefaultWeeklyHours() WeeklyHours {
	wh := WeeklyHours{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		wh[wd] = []TimeRange{{StartMinute: 540, EndMinute: 1020}}
	}
	return wh
}

// Contains reports whether [startMinute,endMinute) falls entirely inside
// one of the day's working ranges.
func (wh WeeklyHours) Contains(day time.Weekday, startMinute, endMinute int) bool {
	for _, r := range wh[day] {
		if startMinute >= r.StartMinute && endMinute <= r.EndMinute {
			return true
		}
	}
	return false
}
