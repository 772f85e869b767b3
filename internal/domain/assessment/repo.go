package assessment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the assessment row and its typed input row.
	Create(ctx context.Context, a *Assessment) error
	Get(ctx context.Context, id uuid.UUID) (*Assessment, error)
	List(ctx context.Context, f ListFilter) ([]*Assessment, int, error)
}
