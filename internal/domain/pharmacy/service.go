package pharmacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/realtime"
)

const dateLayout = "2006-01-02"

// Caller identifies who is acting on an order.
type Caller struct {
	ID   uuid.UUID
	Role string
}

type Service struct {
	inventory InventoryRepository
	orders    OrderRepository
	tx        db.TxManager
	events    realtime.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(inventory InventoryRepository, orders OrderRepository, tx db.TxManager,
	events realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		inventory: inventory, orders: orders, tx: tx,
		events: events, logger: logger, now: time.Now,
	}
}

func (s *Service) today() time.Time {
	return startOfDay(s.now())
}

// -- Inventory --

func validateInventory(in InventoryInput) error {
	switch {
	case strings.TrimSpace(in.MedicineName) == "":
		return apperr.Validation("medicine_name is required")
	case in.UnitPrice < 0:
		return apperr.Validation("unit_price cannot be negative")
	case in.ReorderLevel < 0:
		return apperr.Validation("reorder_level cannot be negative")
	}
	return nil
}

// ownItem loads an inventory item and hides items of other chemists.
func (s *Service) ownItem(ctx context.Context, chemistID, id uuid.UUID) (*InventoryItem, error) {
	it, err := s.inventory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.ChemistID != chemistID {
		return nil, apperr.NotFound("inventory item")
	}
	return it, nil
}

func (s *Service) CreateItem(ctx context.Context, chemistID uuid.UUID, in InventoryInput) (*InventoryItem, error) {
	if err := validateInventory(in); err != nil {
		return nil, err
	}
	it := &InventoryItem{
		ChemistID:    chemistID,
		MedicineName: strings.TrimSpace(in.MedicineName),
		GenericName:  in.GenericName,
		Manufacturer: in.Manufacturer,
		UnitPrice:    in.UnitPrice,
		ReorderLevel: in.ReorderLevel,
	}
	if err := s.inventory.Create(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) UpdateItem(ctx context.Context, chemistID, id uuid.UUID, in InventoryInput) (*InventoryItem, error) {
	if err := validateInventory(in); err != nil {
		return nil, err
	}
	it, err := s.ownItem(ctx, chemistID, id)
	if err != nil {
		return nil, err
	}
	it.MedicineName = strings.TrimSpace(in.MedicineName)
	it.GenericName = in.GenericName
	it.Manufacturer = in.Manufacturer
	it.UnitPrice = in.UnitPrice
	it.ReorderLevel = in.ReorderLevel
	if err := s.inventory.Update(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (s *Service) DeleteItem(ctx context.Context, chemistID, id uuid.UUID) error {
	if _, err := s.ownItem(ctx, chemistID, id); err != nil {
		return err
	}
	return s.inventory.Delete(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, f InventoryFilter) ([]*InventoryItem, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.inventory.List(ctx, f)
}

// AddBatch receives stock. The expiry date must be in the future.
func (s *Service) AddBatch(ctx context.Context, chemistID, inventoryID uuid.UUID, in BatchInput) (*Batch, error) {
	if strings.TrimSpace(in.BatchNumber) == "" {
		return nil, apperr.Validation("batch_number is required")
	}
	if in.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	expiry, err := time.ParseInLocation(dateLayout, in.ExpiryDate, s.now().Location())
	if err != nil {
		return nil, apperr.Validation("expiry_date must be YYYY-MM-DD")
	}
	if !expiry.After(s.today()) {
		return nil, apperr.Validation("expiry_date must be in the future")
	}
	if _, err := s.ownItem(ctx, chemistID, inventoryID); err != nil {
		return nil, err
	}

	b := &Batch{
		InventoryID: inventoryID,
		BatchNumber: strings.TrimSpace(in.BatchNumber),
		Quantity:    in.Quantity,
		ExpiryDate:  expiry,
	}
	if err := s.inventory.AddBatch(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Info().Str("inventory_id", inventoryID.String()).Int("quantity", b.Quantity).Msg("batch received")
	return b, nil
}

// Expiring lists batches expiring within days (default 30).
func (s *Service) Expiring(ctx context.Context, chemistID uuid.UUID, days int) ([]*ExpiringBatch, error) {
	if days == 0 {
		days = DefaultExpiryWindowDays
	}
	if days < 1 || days > 365 {
		return nil, apperr.Validation("days must be between 1 and 365")
	}
	today := s.today()
	return s.inventory.Expiring(ctx, chemistID, today, today.AddDate(0, 0, days))
}

// -- Orders --

// PlaceOrder prices the items from the chemist's inventory.
func (s *Service) PlaceOrder(ctx context.Context, patientID uuid.UUID, req PlaceOrderRequest) (*Order, error) {
	if req.ChemistID == uuid.Nil {
		return nil, apperr.Validation("chemist_id is required")
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, apperr.Validation("delivery_address is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}

	o := &Order{
		PatientID:       patientID,
		ChemistID:       req.ChemistID,
		PrescriptionID:  req.PrescriptionID,
		Status:          StatusPlaced,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
	}
	seen := map[uuid.UUID]bool{}
	for i, in := range req.Items {
		if in.Quantity <= 0 {
			return nil, apperr.Validation("items[%d].quantity must be positive", i)
		}
		if seen[in.InventoryID] {
			return nil, apperr.Validation("items[%d] repeats an inventory item", i)
		}
		seen[in.InventoryID] = true

		it, err := s.inventory.Get(ctx, in.InventoryID)
		if err != nil || it.ChemistID != req.ChemistID {
			return nil, apperr.Validation("items[%d].inventory_id is not sold by this chemist", i)
		}
		if it.Stock < in.Quantity {
			return nil, apperr.Conflict("only %d units of %s in stock", it.Stock, it.MedicineName)
		}
		o.Items = append(o.Items, OrderItem{
			InventoryID:  it.ID,
			MedicineName: it.MedicineName,
			Quantity:     in.Quantity,
			UnitPrice:    it.UnitPrice,
		})
		o.TotalAmount += float64(in.Quantity) * it.UnitPrice
	}

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, o)
	}); err != nil {
		return nil, err
	}
	s.publish(ctx, "order.created", o)
	s.logger.Info().Str("order_id", o.ID.String()).Float64("total", o.TotalAmount).Msg("medicine order placed")
	return o, nil
}

func (s *Service) publish(ctx context.Context, typ string, o *Order) {
	payload := map[string]interface{}{"status": o.Status, "total_amount": o.TotalAmount}
	for _, topic := range []string{realtime.ChemistTopic(o.ChemistID), realtime.PatientTopic(o.PatientID)} {
		if err := s.events.Publish(ctx, realtime.NewEvent(topic, typ, "order", o.ID.String(), payload)); err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish order event")
		}
	}
}

func canSee(c Caller, o *Order) bool {
	switch c.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleChemist:
		return o.ChemistID == c.ID
	case auth.RolePatient:
		return o.PatientID == c.ID
	}
	return false
}

func (s *Service) GetOrder(ctx context.Context, c Caller, id uuid.UUID) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(c, o) {
		return nil, apperr.NotFound("order")
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]*Order, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	return s.orders.List(ctx, f)
}

// UpdateStatus moves an order along its lifecycle. Chemists drive it
// forward; the patient may only cancel. Delivery draws stock from batches
// earliest expiry first in the same transaction as the status change.
func (s *Service) UpdateStatus(ctx context.Context, c Caller, id uuid.UUID, to string) (*Order, error) {
	if !validStatus(to) {
		return nil, apperr.Validation("invalid status %q", to)
	}
	o, err := s.GetOrder(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if c.Role == auth.RolePatient && to != StatusCancelled {
		return nil, fmt.Errorf("%w: patients can only cancel orders", apperr.ErrForbidden)
	}
	if !CanTransition(o.Status, to) {
		return nil, apperr.Transition(o.Status, to)
	}

	from := o.Status
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if to == StatusDelivered {
			if err := s.drawStock(ctx, o); err != nil {
				return err
			}
		}
		return s.orders.UpdateStatus(ctx, id, from, to)
	})
	if err != nil {
		return nil, err
	}

	o.Status = to
	s.publish(ctx, "order.status_changed", o)
	s.logger.Info().Str("order_id", id.String()).Str("from", from).Str("to", to).Msg("order status changed")
	return o, nil
}

func (s *Service) drawStock(ctx context.Context, o *Order) error {
	today := s.today()
	for _, it := range o.Items {
		batches, err := s.inventory.UsableBatches(ctx, it.InventoryID, today)
		if err != nil {
			return err
		}
		allocs, err := AllocateFEFO(batches, it.Quantity, today)
		if err != nil {
			return fmt.Errorf("%s: %w", it.MedicineName, err)
		}
		for _, a := range allocs {
			if err := s.inventory.SetBatchQuantity(ctx, a.BatchID, a.Remaining); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dashboard summarises orders and stock for a chemist.
func (s *Service) Dashboard(ctx context.Context, chemistID uuid.UUID) (*Dashboard, error) {
	counts, err := s.orders.CountByStatus(ctx, chemistID)
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]int, len(OrderStatuses))
	for _, st := range OrderStatuses {
		byStatus[st] = counts[st]
	}

	today := s.today()
	revenue, err := s.orders.DeliveredRevenue(ctx, chemistID, today)
	if err != nil {
		return nil, err
	}
	low, err := s.inventory.CountLowStock(ctx, chemistID)
	if err != nil {
		return nil, err
	}
	expiring, err := s.inventory.Expiring(ctx, chemistID, today, today.AddDate(0, 0, DefaultExpiryWindowDays))
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		OrdersByStatus: byStatus,
		TodayRevenue:   revenue,
		LowStockCount:  low,
		ExpiringCount:  len(expiring),
	}, nil
}

// OrdersToday counts orders placed since midnight across all chemists.
func (s *Service) OrdersToday(ctx context.Context) (int, error) {
	return s.orders.CountCreatedSince(ctx, s.today())
}
