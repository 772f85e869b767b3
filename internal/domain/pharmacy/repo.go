package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *InventoryItem) error
	Get(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	Update(ctx context.Context, item *InventoryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f InventoryFilter) ([]*InventoryItem, int, error)
	AddBatch(ctx context.Context, b *Batch) error
	// Expiring returns batches with stock whose expiry falls between today and
	// until, soonest first.
	Expiring(ctx context.Context, chemistID uuid.UUID, today, until time.Time) ([]*ExpiringBatch, error)
	// UsableBatches returns non-expired batches with stock in expiry order and
	// locks them for the enclosing transaction.
	UsableBatches(ctx context.Context, inventoryID uuid.UUID, today time.Time) ([]*Batch, error)
	SetBatchQuantity(ctx context.Context, batchID uuid.UUID, qty int) error
	CountLowStock(ctx context.Context, chemistID uuid.UUID) (int, error)
}

type OrderRepository interface {
	// Create inserts the order and its items.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f OrderFilter) ([]*Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	CountByStatus(ctx context.Context, chemistID uuid.UUID) (map[string]int, error)
	// DeliveredRevenue sums delivered order totals updated at or after since.
	DeliveredRevenue(ctx context.Context, chemistID uuid.UUID, since time.Time) (float64, error)
	// CountCreatedSince counts orders of every chemist placed at or after since.
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}
