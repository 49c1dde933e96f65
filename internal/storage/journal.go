package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"poolCustody/internal/model"
)

const (
	defaultJournalBatch    = 64
	defaultJournalInterval = time.Second
)

// Journal batches events from a subscription channel into one or more sinks.
type Journal struct {
	sinks     []EventSink
	batchSize int
	interval  time.Duration
	logger    *zap.Logger
}

func NewJournal(logger *zap.Logger, sinks ...EventSink) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		sinks:     sinks,
		batchSize: defaultJournalBatch,
		interval:  defaultJournalInterval,
		logger:    logger,
	}
}

// Run drains ch until it is closed or ctx is done, flushing whatever is
// pending before returning.
func (j *Journal) Run(ctx context.Context, ch <-chan model.Event) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	pending := make([]model.Event, 0, j.batchSize)
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		for _, sink := range j.sinks {
			if err := sink.PutEventBatch(ctx, pending); err != nil {
				return err
			}
		}
		j.logger.Debug("journal flushed", zap.Int("events", len(pending)))
		pending = pending[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return flush(context.WithoutCancel(ctx))
		case ev, ok := <-ch:
			if !ok {
				return flush(ctx)
			}
			pending = append(pending, ev)
			if len(pending) >= j.batchSize {
				if err := flush(ctx); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(ctx); err != nil {
				return err
			}
		}
	}
}
