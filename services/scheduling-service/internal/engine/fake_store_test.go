package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/profile"
)

// fakeStore is an in-memory Store with the same write-side guarantees as
// the postgres implementation: create/reschedule hold a lock across the
// overlap re-check and the insert.
type fakeStore struct {
	mu          sync.Mutex
	seq         int
	appts       map[string]model.Appointment
	reminders   map[string][]model.Reminder
	reschedules []model.RescheduleRecord
	events      []outbox.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		appts:     make(map[string]model.Appointment),
		reminders: make(map[string][]model.Reminder),
	}
}

func (s *fakeStore) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("id-%04d", s.seq)
}

func (s *fakeStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *fakeStore) ListActive(_ context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listActiveLocked(providerID, from, to), nil
}

func (s *fakeStore) listActiveLocked(providerID string, from, to time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ProviderID != providerID || !a.Status.Active() {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out
}

func (s *fakeStore) ListByRequester(_ context.Context, requesterID string, limit int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.RequesterID == requesterID {
			out = append(out, a)
		}
	}
	sortByStart(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) ListByProvider(_ context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ProviderID != providerID {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

func (s *fakeStore) CreateAppointment(_ context.Context, appt model.Appointment, reminders []model.Reminder, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlapsLocked(appt, "") {
		return model.Appointment{}, ErrSlotUnavailable
	}
	s.appts[appt.ID] = appt
	s.reminders[appt.ID] = reminders
	s.events = append(s.events, evt)
	return appt, nil
}

func (s *fakeStore) UpdateAppointment(_ context.Context, appt model.Appointment, cancelReminders bool, evt outbox.Event) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[appt.ID]; !ok {
		return model.Appointment{}, ErrNotFound
	}
	s.appts[appt.ID] = appt
	if cancelReminders {
		s.cancelRemindersLocked(appt.ID)
	}
	s.events = append(s.events, evt)
	return appt, nil
}

func (s *fakeStore) Reschedule(_ context.Context, old, replacement model.Appointment, rec model.RescheduleRecord, reminders []model.Reminder, evt outbox.Event) (model.Appointment, model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[old.ID]; !ok {
		return model.Appointment{}, model.Appointment{}, ErrNotFound
	}
	if s.overlapsLocked(replacement, old.ID) {
		return model.Appointment{}, model.Appointment{}, ErrSlotUnavailable
	}
	s.appts[old.ID] = old
	s.appts[replacement.ID] = replacement
	s.reschedules = append(s.reschedules, rec)
	s.cancelRemindersLocked(old.ID)
	s.reminders[replacement.ID] = reminders
	s.events = append(s.events, evt)
	return old, replacement, nil
}

func (s *fakeStore) overlapsLocked(appt model.Appointment, excludeID string) bool {
	for _, a := range s.listActiveLocked(appt.ProviderID, appt.Date, appt.Date) {
		if a.ID == appt.ID || (excludeID != "" && a.ID == excludeID) {
			continue
		}
		if a.OverlapsMinutes(appt.StartMinute, appt.EndMinute()) {
			return true
		}
	}
	return false
}

func (s *fakeStore) cancelRemindersLocked(appointmentID string) {
	rs := s.reminders[appointmentID]
	for i := range rs {
		if rs[i].Status == model.ReminderScheduled {
			rs[i].Status = model.ReminderCancelled
		}
	}
}

func sortByStart(appts []model.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartAt().Before(appts[j].StartAt())
	})
}

type fakeProfiles struct {
	byID map[string]profile.ProviderProfile
}

func (p *fakeProfiles) Get(_ context.Context, providerID string) (profile.ProviderProfile, error) {
	if prof, ok := p.byID[providerID]; ok {
		return prof, nil
	}
	return profile.Default(providerID), nil
}
