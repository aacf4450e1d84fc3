package engine

import (
	"log/slog"
	"time"
)

type Role string

const (
	RoleProvider  Role = "provider"
	RoleRequester Role = "requester"
)

// Caller is the gateway-verified identity attached to every request. The
// engine trusts it and performs only coarse ownership/role checks.
type Caller struct {
	ID   string
	Role Role
}

type Config struct {
	// LeadTime is the minimum gap between "now" and a booking's start.
	LeadTime time.Duration
	// ReminderOffsets are subtracted from the appointment start to derive
	// reminder fire times. Offsets whose fire time already passed are
	// skipped.
	ReminderOffsets []time.Duration
	// SlotMinutes is the default candidate-slot length for availability
	// queries that do not supply one.
	SlotMinutes int
	// MaxSuggestions caps the alternative slots attached to a conflict.
	MaxSuggestions int
	// Now is the clock; defaults to time.Now in UTC.
	Now func() time.Time
}

type Engine struct {
	store    Store
	profiles Profiles
	logger   *slog.Logger

	leadTime       time.Duration
	offsets        []time.Duration
	slotMinutes    int
	maxSuggestions int
	now            func() time.Time
}

func New(store Store, profiles Profiles, logger *slog.Logger, cfg Config) *Engine {
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 24 * time.Hour
	}
	if len(cfg.ReminderOffsets) == 0 {
		cfg.ReminderOffsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 30
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 5
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:          store,
		profiles:       profiles,
		logger:         logger,
		leadTime:       cfg.LeadTime,
		offsets:        cfg.ReminderOffsets,
		slotMinutes:    cfg.SlotMinutes,
		maxSuggestions: cfg.MaxSuggestions,
		now:            cfg.Now,
	}
}
