package lab

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]*Order, int, error)
	// UpdateStatus moves the order only while it is still in status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	// AttachReport stores the report URL and completes the order, guarded on
	// the current status.
	AttachReport(ctx context.Context, id uuid.UUID, from, reportURL string) error
	CountByStatus(ctx context.Context, labID uuid.UUID) (map[string]int, error)
	CountCompletedSince(ctx context.Context, labID uuid.UUID, since time.Time) (int, error)
}
