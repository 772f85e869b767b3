package screening

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// Update saves s only if the stored stage still equals prevStage, so two
	// concurrent answers cannot both advance the same stage.
	Update(ctx context.Context, s *Session, prevStage int) error
	List(ctx context.Context, f ListFilter) ([]*Session, int, error)
	CountActive(ctx context.Context) (int, error)
}
