package teleconsult

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Room) error
	Get(ctx context.Context, id uuid.UUID) (*Room, error)
	List(ctx context.Context, f ListFilter) ([]*Room, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}
