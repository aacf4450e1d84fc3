package model

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-12")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	want := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("got %v, want %v", d, want)
	}
	if FormatDate(d) != "2025-03-12" {
		t.Fatalf("FormatDate = %q", FormatDate(d))
	}

	for _, bad := range []string{"12-03-2025", "2025/03/12", "2025-13-01", "yesterday", ""} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("ParseDate(%q) accepted", bad)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"09:30": 570,
		"17:00": 1020,
		"23:59": 1439,
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseClock(%q) = %d, want %d", in, got, want)
		}
		if FormatClock(got) != in {
			t.Fatalf("FormatClock(%d) = %q, want %q", got, FormatClock(got), in)
		}
	}
	for _, bad := range []string{"9am", "25:00", "10:61", ""} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) accepted", bad)
		}
	}
}

func TestWeeklyHoursContains(t *testing.T) {
	wh := WeeklyHours{
		time.Monday: []TimeRange{
			{StartMinute: 540, EndMinute: 720},
			{StartMinute: 780, EndMinute: 1020},
		},
	}

	if !wh.Contains(time.Monday, 540, 570) {
		t.Fatal("range start must be bookable")
	}
	if !wh.Contains(time.Monday, 690, 720) {
		t.Fatal("slot ending exactly at range end must be bookable")
	}
	if wh.Contains(time.Monday, 700, 730) {
		t.Fatal("slot crossing the lunch gap must not be bookable")
	}
	if wh.Contains(time.Monday, 1000, 1030) {
		t.Fatal("slot past range end must not be bookable")
	}
	if wh.Contains(time.Tuesday, 540, 570) {
		t.Fatal("non-working day must not be bookable")
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range ActiveStatuses {
		if !s.Active() || s.Terminal() {
			t.Fatalf("status %q misclassified", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled} {
		if s.Active() || !s.Terminal() {
			t.Fatalf("status %q misclassified", s)
		}
	}
}

func TestOverlapsMinutes(t *testing.T) {
	a := Appointment{StartMinute: 600, DurationMinutes: 30}

	if !a.OverlapsMinutes(615, 645) {
		t.Fatal("partial overlap not detected")
	}
	if !a.OverlapsMinutes(600, 630) {
		t.Fatal("identical interval not detected")
	}
	if a.OverlapsMinutes(630, 660) {
		t.Fatal("adjacent interval must not overlap")
	}
	if a.OverlapsMinutes(570, 600) {
		t.Fatal("touching start must not overlap")
	}
}
