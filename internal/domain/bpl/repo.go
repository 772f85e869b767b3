package bpl

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	HasPending(ctx context.Context, patientID uuid.UUID) (bool, error)
	List(ctx context.Context, f ListFilter) ([]*Request, int, error)
	// Review sets the decision on a pending request. A request that is no
	// longer pending yields an invalid transition error.
	Review(ctx context.Context, r *Request) error
	// BulkDelete removes the requests and returns the document URLs of the
	// rows it deleted.
	BulkDelete(ctx context.Context, ids []uuid.UUID) ([]string, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
