package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/profile"
)

// Monday noon UTC. Default working hours are Mon-Fri 09:00-17:00.
var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

const (
	providerID  = "prov-1"
	requesterID = "req-1"
)

func newTestEngine(cfg Config) (*Engine, *fakeStore) {
	store := newFakeStore()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	profiles := &fakeProfiles{byID: map[string]profile.ProviderProfile{
		providerID: {
			ProviderID:      providerID,
			ConsultationFee: 100,
			Hours:           model.DefaultWeeklyHours(),
		},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, profiles, logger, cfg), store
}

func seedAppointment(s *fakeStore, providerID, requesterID string, date time.Time, startMinute, durationMinutes int, status model.Status) model.Appointment {
	appt := model.Appointment{
		ID:              s.NewID(),
		ProviderID:      providerID,
		RequesterID:     requesterID,
		Date:            date,
		StartMinute:     startMinute,
		DurationMinutes: durationMinutes,
		Status:          status,
		RefundStatus:    model.RefundNotApplicable,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	s.mu.Lock()
	s.appts[appt.ID] = appt
	s.mu.Unlock()
	return appt
}

func requester() Caller { return Caller{ID: requesterID, Role: RoleRequester} }
func provider() Caller  { return Caller{ID: providerID, Role: RoleProvider} }

func TestBookCreatesScheduledAppointmentWithReminders(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()

	appt, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID:      providerID,
		Date:            "2025-03-12",
		StartTime:       "10:00",
		DurationMinutes: 60,
		Notes:           "first visit",
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if appt.Status != model.StatusScheduled {
		t.Fatalf("status = %q, want scheduled", appt.Status)
	}
	if appt.RequesterID != requesterID {
		t.Fatalf("requester = %q, want caller id", appt.RequesterID)
	}
	if got := appt.StartAt(); !got.Equal(time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("start at = %v", got)
	}

	reminders := store.reminders[appt.ID]
	if len(reminders) != 2 {
		t.Fatalf("got %d reminders, want 2", len(reminders))
	}
	if reminders[0].Channel != model.ChannelEmail || reminders[1].Channel != model.ChannelSMS {
		t.Fatalf("channels = %v/%v, want email/sms", reminders[0].Channel, reminders[1].Channel)
	}
	wantFire := appt.StartAt().Add(-24 * time.Hour)
	if !reminders[0].FireAt.Equal(wantFire) {
		t.Fatalf("first fire at %v, want %v", reminders[0].FireAt, wantFire)
	}

	if len(store.events) != 1 || store.events[0].EventType != outbox.EventAppointmentBooked {
		t.Fatalf("events = %+v, want one booked event", store.events)
	}
}

func TestBookRejectsPastAndShortNotice(t *testing.T) {
	e, _ := newTestEngine(Config{})
	ctx := context.Background()

	// Yesterday.
	_, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-09", StartTime: "10:00", DurationMinutes: 30,
	})
	if !errors.Is(err, ErrInvalidTiming) {
		t.Fatalf("past booking: got %v, want ErrInvalidTiming", err)
	}

	// Tomorrow 10:00 is 22h away, inside the 24h lead time.
	_, err = e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-11", StartTime: "10:00", DurationMinutes: 30,
	})
	if !errors.Is(err, ErrInvalidTiming) {
		t.Fatalf("short notice: got %v, want ErrInvalidTiming", err)
	}
}

func TestBookValidation(t *testing.T) {
	e, _ := newTestEngine(Config{})
	ctx := context.Background()

	cases := []BookingRequest{
		{ProviderID: providerID, Date: "12-03-2025", StartTime: "10:00", DurationMinutes: 30},
		{ProviderID: providerID, Date: "2025-03-12", StartTime: "10am", DurationMinutes: 30},
		{ProviderID: providerID, Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 10},
		{ProviderID: providerID, Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 200},
		{ProviderID: "", Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 30},
	}
	for _, req := range cases {
		if _, err := e.Book(ctx, requester(), req); !IsValidation(err) {
			t.Fatalf("request %+v: got %v, want validation error", req, err)
		}
	}
}

func TestBookOutsideWorkingHours(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()

	_, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-12", StartTime: "18:00", DurationMinutes: 30,
	})
	var su *SlotUnavailableError
	if !errors.As(err, &su) {
		t.Fatalf("got %v, want SlotUnavailableError", err)
	}
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatal("SlotUnavailableError must match ErrSlotUnavailable")
	}
	if su.Report.Conflict {
		t.Fatal("out-of-hours rejection must not claim an appointment conflict")
	}
	if len(su.Report.Suggestions) == 0 {
		t.Fatal("expected in-hours suggestions")
	}
	if len(store.appts) != 0 {
		t.Fatal("rejected booking must not mutate the store")
	}
}

func TestBookConflictReturnsSuggestions(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	existing := seedAppointment(store, providerID, "req-2", day, 600, 30, model.StatusConfirmed) // 10:00-10:30

	_, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-12", StartTime: "10:15", DurationMinutes: 30,
	})
	var su *SlotUnavailableError
	if !errors.As(err, &su) {
		t.Fatalf("got %v, want SlotUnavailableError", err)
	}
	if !su.Report.Conflict || len(su.Report.Conflicts) != 1 {
		t.Fatalf("report = %+v, want one conflict", su.Report)
	}
	if su.Report.Conflicts[0].AppointmentID != existing.ID {
		t.Fatalf("conflicting id = %q, want %q", su.Report.Conflicts[0].AppointmentID, existing.ID)
	}
	if len(su.Report.Suggestions) == 0 || len(su.Report.Suggestions) > 5 {
		t.Fatalf("got %d suggestions, want 1..5", len(su.Report.Suggestions))
	}
	for _, s := range su.Report.Suggestions {
		if s.StartTime == "10:00" || s.StartTime == "10:15" {
			t.Fatalf("suggestion %v overlaps the occupied slot", s)
		}
	}
}

func TestBookInactiveStatusesDoNotBlock(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	seedAppointment(store, providerID, "req-2", day, 600, 30, model.StatusCancelled)
	seedAppointment(store, providerID, "req-3", day, 600, 30, model.StatusNoShow)

	if _, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("Book failed: %v", err)
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Book(ctx, requester(), BookingRequest{
				ProviderID: providerID, Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 30,
			})
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrConcurrencyConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("%d bookings won, want exactly 1", won)
	}
	if got := len(store.appts); got != 1 {
		t.Fatalf("%d appointments stored, want 1", got)
	}
}

func TestCancelRefundTiers(t *testing.T) {
	cases := []struct {
		name        string
		until       time.Duration
		wantPercent float64
		wantStatus  model.RefundStatus
	}{
		{"exactly 24h", 24 * time.Hour, 100, model.RefundPending},
		{"23h59m", 23*time.Hour + 59*time.Minute, 50, model.RefundPending},
		{"exactly 10h", 10 * time.Hour, 50, model.RefundPending},
		{"exactly 6h", 6 * time.Hour, 50, model.RefundPending},
		{"5h59m", 5*time.Hour + 59*time.Minute, 0, model.RefundNotApplicable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, store := newTestEngine(Config{})
			startAt := testNow.Add(tc.until)
			day := startAt.Truncate(24 * time.Hour)
			minute := startAt.Hour()*60 + startAt.Minute()
			appt := seedAppointment(store, providerID, requesterID, day, minute, 30, model.StatusScheduled)

			got, err := e.Cancel(context.Background(), requester(), appt.ID, "schedule conflict")
			if err != nil {
				t.Fatalf("Cancel failed: %v", err)
			}
			if got.RefundPercent != tc.wantPercent {
				t.Fatalf("percent = %v, want %v", got.RefundPercent, tc.wantPercent)
			}
			if want := 100 * tc.wantPercent / 100; got.RefundAmount != want {
				t.Fatalf("amount = %v, want %v", got.RefundAmount, want)
			}
			if got.RefundStatus != tc.wantStatus {
				t.Fatalf("refund status = %q, want %q", got.RefundStatus, tc.wantStatus)
			}
			if got.Status != model.StatusCancelled || got.CancelledAt == nil {
				t.Fatalf("appointment not cancelled: %+v", got)
			}
			if got.CancellationReason != "schedule conflict" {
				t.Fatalf("reason = %q", got.CancellationReason)
			}
		})
	}
}

func TestCancelByProviderRefundsInFull(t *testing.T) {
	e, store := newTestEngine(Config{})
	day := testNow.Truncate(24 * time.Hour)
	appt := seedAppointment(store, providerID, requesterID, day, 14*60, 30, model.StatusConfirmed) // 2h away

	got, err := e.Cancel(context.Background(), provider(), appt.ID, "emergency")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got.RefundPercent != 100 || got.RefundAmount != 100 {
		t.Fatalf("refund = %v%% / %v, want full", got.RefundPercent, got.RefundAmount)
	}
}

func TestCancelGuards(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)

	done := seedAppointment(store, providerID, requesterID, day, 600, 30, model.StatusCompleted)
	if _, err := e.Cancel(ctx, requester(), done.ID, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("completed: got %v, want ErrInvalidState", err)
	}

	appt := seedAppointment(store, providerID, requesterID, day, 660, 30, model.StatusScheduled)
	stranger := Caller{ID: "req-other", Role: RoleRequester}
	if _, err := e.Cancel(ctx, stranger, appt.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: got %v, want ErrForbidden", err)
	}

	if _, err := e.Cancel(ctx, requester(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: got %v, want ErrNotFound", err)
	}
}

func TestCancelCancelsPendingReminders(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()

	appt, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := e.Cancel(ctx, requester(), appt.ID, "changed plans"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	for _, r := range store.reminders[appt.ID] {
		if r.Status != model.ReminderCancelled {
			t.Fatalf("reminder %s status = %q, want cancelled", r.ID, r.Status)
		}
	}
}

func TestRescheduleRetiresOldAndLinksNew(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()

	old, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-12", StartTime: "10:00", DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	res, err := e.Reschedule(ctx, requester(), old.ID, "2025-03-12", "14:00", 0, "running late that morning")
	if err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
	if res.Old.Status != model.StatusRescheduled {
		t.Fatalf("old status = %q, want rescheduled", res.Old.Status)
	}
	if res.Old.CancellationReason != "Rescheduled to 2025-03-12 14:00" {
		t.Fatalf("old reason = %q", res.Old.CancellationReason)
	}
	if res.New.Status != model.StatusScheduled || res.New.ID == old.ID {
		t.Fatalf("new appointment = %+v", res.New)
	}
	if res.New.DurationMinutes != 30 {
		t.Fatalf("duration not carried over: %d", res.New.DurationMinutes)
	}

	if len(store.reschedules) != 1 {
		t.Fatalf("%d reschedule records, want 1", len(store.reschedules))
	}
	rec := store.reschedules[0]
	if rec.OldAppointmentID != old.ID || rec.NewAppointmentID != res.New.ID {
		t.Fatalf("record links %q->%q", rec.OldAppointmentID, rec.NewAppointmentID)
	}

	// Old reminders cancelled, new ones scheduled.
	for _, r := range store.reminders[old.ID] {
		if r.Status != model.ReminderCancelled {
			t.Fatalf("old reminder still %q", r.Status)
		}
	}
	if len(store.reminders[res.New.ID]) == 0 {
		t.Fatal("no reminders for the new appointment")
	}

	// Exactly one active appointment remains, at the new time.
	actives, _ := store.ListActive(ctx, providerID, old.Date, old.Date)
	if len(actives) != 1 || actives[0].StartMinute != 14*60 {
		t.Fatalf("actives = %+v, want one at 14:00", actives)
	}
}

func TestRescheduleDoesNotConflictWithItself(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	old := seedAppointment(store, providerID, requesterID, day, 600, 60, model.StatusScheduled)

	// Overlaps the old slot; allowed because the old record is excluded.
	if _, err := e.Reschedule(ctx, requester(), old.ID, "2025-03-12", "10:30", 60, ""); err != nil {
		t.Fatalf("Reschedule failed: %v", err)
	}
}

func TestRescheduleConflictLeavesEverythingUntouched(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	old := seedAppointment(store, providerID, requesterID, day, 600, 30, model.StatusScheduled)
	seedAppointment(store, providerID, "req-2", day, 14*60, 30, model.StatusScheduled)

	_, err := e.Reschedule(ctx, requester(), old.ID, "2025-03-12", "14:00", 30, "")
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("got %v, want ErrSlotUnavailable", err)
	}
	got, _ := store.GetAppointment(ctx, old.ID)
	if got.Status != model.StatusScheduled {
		t.Fatalf("old appointment mutated: %+v", got)
	}
	if len(store.appts) != 2 || len(store.reschedules) != 0 {
		t.Fatal("failed reschedule must not leave partial state")
	}
}

func TestBulkRescheduleMovesWholeDay(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	oldDay := time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC)
	newDay := time.Date(2025, time.March, 18, 0, 0, 0, 0, time.UTC)

	ten := seedAppointment(store, providerID, requesterID, oldDay, 10*60, 30, model.StatusScheduled)
	eleven := seedAppointment(store, providerID, requesterID, oldDay, 11*60, 30, model.StatusScheduled)
	confirmed := seedAppointment(store, providerID, requesterID, oldDay, 15*60, 30, model.StatusConfirmed)
	// Occupies 11:00 on the target day, so that move has to be skipped.
	seedAppointment(store, providerID, "req-2", newDay, 11*60, 30, model.StatusScheduled)

	res, err := e.BulkReschedule(ctx, provider(), "2025-03-17", "2025-03-18", "clinic closed")
	if err != nil {
		t.Fatalf("BulkReschedule failed: %v", err)
	}
	if res.TotalFound != 2 {
		t.Fatalf("total found = %d, want 2", res.TotalFound)
	}
	if len(res.Moved) != 1 {
		t.Fatalf("moved = %d, want 1", len(res.Moved))
	}
	if res.Moved[0].Old.ID != ten.ID {
		t.Fatalf("moved %q, want %q", res.Moved[0].Old.ID, ten.ID)
	}
	if !res.Moved[0].New.Date.Equal(newDay) || res.Moved[0].New.StartMinute != 10*60 {
		t.Fatalf("replacement landed at %v %d", res.Moved[0].New.Date, res.Moved[0].New.StartMinute)
	}

	if got := store.appts[ten.ID].Status; got != model.StatusRescheduled {
		t.Fatalf("10:00 status = %q, want rescheduled", got)
	}
	if got := store.appts[eleven.ID].Status; got != model.StatusScheduled {
		t.Fatalf("blocked 11:00 status = %q, want scheduled", got)
	}
	if got := store.appts[confirmed.ID]; got.Status != model.StatusConfirmed || !got.Date.Equal(oldDay) {
		t.Fatalf("confirmed appointment moved: %+v", got)
	}
}

func TestBulkRescheduleGuards(t *testing.T) {
	e, _ := newTestEngine(Config{})
	ctx := context.Background()

	if _, err := e.BulkReschedule(ctx, requester(), "2025-03-17", "2025-03-18", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("requester caller: got %v, want ErrForbidden", err)
	}
	if _, err := e.BulkReschedule(ctx, provider(), "17/03/2025", "2025-03-18", ""); !IsValidation(err) {
		t.Fatalf("bad old_date: got %v, want validation error", err)
	}
	if _, err := e.BulkReschedule(ctx, provider(), "2025-03-17", "next tuesday", ""); !IsValidation(err) {
		t.Fatalf("bad new_date: got %v, want validation error", err)
	}
}

func TestConfirmCompleteTransitions(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	appt := seedAppointment(store, providerID, requesterID, day, 600, 30, model.StatusScheduled)

	confirmed, err := e.Confirm(ctx, requester(), appt.ID)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("status = %q", confirmed.Status)
	}
	if _, err := e.Confirm(ctx, requester(), appt.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double confirm: got %v, want ErrInvalidState", err)
	}

	if _, err := e.Complete(ctx, requester(), appt.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("requester complete: got %v, want ErrForbidden", err)
	}
	completed, err := e.Complete(ctx, provider(), appt.ID, "follow-up in two weeks")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != model.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("completed = %+v", completed)
	}
	if completed.Notes != "follow-up in two weeks" {
		t.Fatalf("notes = %q", completed.Notes)
	}
}

func TestMarkNoShowOnlyAfterStart(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := testNow.Truncate(24 * time.Hour)

	future := seedAppointment(store, providerID, requesterID, day, 15*60, 30, model.StatusConfirmed)
	if _, err := e.MarkNoShow(ctx, provider(), future.ID); !errors.Is(err, ErrInvalidTiming) {
		t.Fatalf("before start: got %v, want ErrInvalidTiming", err)
	}

	atStart := seedAppointment(store, providerID, requesterID, day, 12*60, 30, model.StatusConfirmed)
	if _, err := e.MarkNoShow(ctx, provider(), atStart.ID); !errors.Is(err, ErrInvalidTiming) {
		t.Fatalf("at start instant: got %v, want ErrInvalidTiming", err)
	}

	past := seedAppointment(store, providerID, requesterID, day, 9*60, 30, model.StatusConfirmed)
	got, err := e.MarkNoShow(ctx, provider(), past.ID)
	if err != nil {
		t.Fatalf("MarkNoShow failed: %v", err)
	}
	if got.Status != model.StatusNoShow {
		t.Fatalf("status = %q", got.Status)
	}
	if _, err := e.MarkNoShow(ctx, requester(), past.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("requester no-show: got %v, want ErrForbidden", err)
	}
}

func TestAvailabilityMondayExample(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC) // next Monday
	booked := seedAppointment(store, providerID, "req-2", day, 600, 30, model.StatusScheduled)

	report, err := e.Availability(ctx, providerID, "2025-03-17", "2025-03-17", 30)
	if err != nil {
		t.Fatalf("Availability failed: %v", err)
	}
	if len(report.Days) != 1 || !report.Days[0].WorkingDay {
		t.Fatalf("days = %+v", report.Days)
	}
	slots := report.Days[0].Slots
	// 09:00-17:00 in 30-minute steps is 16 candidate slots.
	if len(slots) != 16 {
		t.Fatalf("%d slots, want 16", len(slots))
	}
	if report.TotalAvailable != 15 {
		t.Fatalf("total available = %d, want 15", report.TotalAvailable)
	}
	for _, s := range slots {
		occupied := s.StartMinute == 600
		if s.Available == occupied {
			t.Fatalf("slot %d availability = %v", s.StartMinute, s.Available)
		}
		if occupied && s.AppointmentID != booked.ID {
			t.Fatalf("occupied slot carries %q, want %q", s.AppointmentID, booked.ID)
		}
	}
}

func TestDetectConflictIsPure(t *testing.T) {
	e, store := newTestEngine(Config{})
	ctx := context.Background()
	day := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	seedAppointment(store, providerID, "req-2", day, 600, 30, model.StatusScheduled)

	before := len(store.events)
	report, err := e.DetectConflict(ctx, providerID, "2025-03-12", "10:00", 30, "")
	if err != nil {
		t.Fatalf("DetectConflict failed: %v", err)
	}
	if !report.Conflict {
		t.Fatal("expected a conflict")
	}
	// Adjacent interval shares no instant.
	report, err = e.DetectConflict(ctx, providerID, "2025-03-12", "10:30", 30, "")
	if err != nil {
		t.Fatalf("DetectConflict failed: %v", err)
	}
	if report.Conflict {
		t.Fatal("adjacent interval must not conflict")
	}
	if len(store.events) != before || len(store.appts) != 1 {
		t.Fatal("DetectConflict must not mutate")
	}
}

func TestPlanRemindersSkipPassedOffsets(t *testing.T) {
	// Short lead time so a same-day booking is possible: only the
	// 1-hour reminder is still in the future.
	e, store := newTestEngine(Config{LeadTime: 30 * time.Minute})
	ctx := context.Background()

	appt, err := e.Book(ctx, requester(), BookingRequest{
		ProviderID: providerID, Date: "2025-03-10", StartTime: "14:00", DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	reminders := store.reminders[appt.ID]
	if len(reminders) != 1 {
		t.Fatalf("%d reminders, want 1", len(reminders))
	}
	if reminders[0].Channel != model.ChannelSMS {
		t.Fatalf("channel = %q, want sms", reminders[0].Channel)
	}
}
