package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mediflow/scheduling/libs/db"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
)

// Worker polls for due reminders and hands them to the notification
// subsystem through the outbox. Claim, event write, and dispatch stamp
// commit in one transaction.
type Worker struct {
	pool      *db.Pool
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewWorker(pool *db.Pool, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder dispatch batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	for _, d := range due {
		payload, err := json.Marshal(map[string]any{
			"reminder_id":    d.ID,
			"appointment_id": d.AppointmentID,
			"provider_id":    d.ProviderID,
			"requester_id":   d.RequesterID,
			"channel":        d.Channel,
			"message":        d.Message,
			"fire_at":        d.FireAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		if err := w.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "reminder",
			AggregateID:   d.ID,
			EventType:     outbox.EventReminderDue,
			Payload:       payload,
		}); err != nil {
			return err
		}
	}

	if err := w.repo.MarkDispatched(ctx, tx, due); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	w.logger.Info("reminders dispatched", "count", len(due))
	return nil
}
