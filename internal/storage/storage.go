package storage

import (
	"context"

	"poolCustody/internal/model"
)

// EventSink defines a sink for custody events.
type EventSink interface {
	PutEventBatch(ctx context.Context, events []model.Event) error
}
