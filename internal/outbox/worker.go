package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultBatchSize = 100

// Worker drains committed outbox rows to the publisher on an interval. Rows
// are marked published before delivery is confirmed, which keeps the
// at-most-once contract: a crash between marking and producing drops events
// rather than duplicating them.
type Worker struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewWorker(store Store, publisher Publisher, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Run drains the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain processes one batch. Publish failures are logged per event and the
// batch continues; failed events are not retried.
func (w *Worker) Drain(ctx context.Context) error {
	events, err := w.store.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	if err := w.store.MarkPublished(ctx, ids, time.Now()); err != nil {
		return err
	}

	for _, event := range events {
		if err := w.publisher.Publish(ctx, event); err != nil {
			w.logger.WarnContext(ctx, "notification publish failed",
				"event_type", event.EventType,
				"event_id", event.ID.String(),
				"error", err,
			)
		}
	}
	return nil
}
