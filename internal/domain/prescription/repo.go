package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the prescription and its items. Callers wrap it in a
	// transaction.
	Create(ctx context.Context, p *Prescription) error
	// Get returns the prescription with items and participant names.
	Get(ctx context.Context, id uuid.UUID) (*Prescription, error)
	List(ctx context.Context, f ListFilter) ([]*Prescription, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SetPDFURL(ctx context.Context, id uuid.UUID, url string) error
}
