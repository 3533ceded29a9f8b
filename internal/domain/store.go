package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TickJournal persists processed ticks.
type TickJournal interface {
	Append(ctx context.Context, rec TickRecord) error
	ListBySession(ctx context.Context, session string, opts ListOpts) ([]TickRecord, error)
}
