package onboarding

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Application) error
	Get(ctx context.Context, kind string, id uuid.UUID) (*Application, error)
	GetByUser(ctx context.Context, kind string, userID uuid.UUID) (*Application, error)
	List(ctx context.Context, kind string, f ListFilter) ([]*Application, int, error)
	// Review records a decision on a pending application. It fails with
	// ErrInvalidTransition when the application is no longer pending.
	Review(ctx context.Context, a *Application) error
	CountPending(ctx context.Context) (map[string]int, error)
}
