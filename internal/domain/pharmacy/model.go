package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	StatusPlaced     = "placed"
	StatusAccepted   = "accepted"
	StatusPacked     = "packed"
	StatusDispatched = "dispatched"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []string{
	StatusPlaced, StatusAccepted, StatusPacked, StatusDispatched, StatusDelivered, StatusCancelled,
}

var orderTransitions = map[string][]string{
	StatusPlaced:     {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusPacked, StatusCancelled},
	StatusPacked:     {StatusDispatched},
	StatusDispatched: {StatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// DefaultExpiryWindowDays is used when the expiring query gives no days.
const DefaultExpiryWindowDays = 30

type InventoryItem struct {
	ID           uuid.UUID `json:"id"`
	ChemistID    uuid.UUID `json:"chemist_id"`
	MedicineName string    `json:"medicine_name"`
	GenericName  *string   `json:"generic_name,omitempty"`
	Manufacturer *string   `json:"manufacturer,omitempty"`
	UnitPrice    float64   `json:"unit_price"`
	ReorderLevel int       `json:"reorder_level"`
	// Stock is the sum of non-expired batch quantities.
	Stock     int       `json:"stock"`
	LowStock  bool      `json:"low_stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Batch struct {
	ID          uuid.UUID `json:"id"`
	InventoryID uuid.UUID `json:"inventory_id"`
	BatchNumber string    `json:"batch_number"`
	Quantity    int       `json:"quantity"`
	ExpiryDate  time.Time `json:"expiry_date"`
	ReceivedAt  time.Time `json:"received_at"`
}

// ExpiringBatch is a batch reported by the expiring stock view.
type ExpiringBatch struct {
	Batch
	MedicineName string `json:"medicine_name"`
	DaysLeft     int    `json:"days_left"`
}

type Order struct {
	ID              uuid.UUID   `json:"id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	ChemistID       uuid.UUID   `json:"chemist_id"`
	PrescriptionID  *uuid.UUID  `json:"prescription_id,omitempty"`
	Status          string      `json:"status"`
	TotalAmount     float64     `json:"total_amount"`
	DeliveryAddress string      `json:"delivery_address"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	InventoryID  uuid.UUID `json:"inventory_id"`
	MedicineName string    `json:"medicine_name"`
	Quantity     int       `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
}

type InventoryInput struct {
	MedicineName string  `json:"medicine_name"`
	GenericName  *string `json:"generic_name"`
	Manufacturer *string `json:"manufacturer"`
	UnitPrice    float64 `json:"unit_price"`
	ReorderLevel int     `json:"reorder_level"`
}

type BatchInput struct {
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
	ExpiryDate  string `json:"expiry_date"`
}

type OrderItemInput struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	Quantity    int       `json:"quantity"`
}

type PlaceOrderRequest struct {
	ChemistID       uuid.UUID        `json:"chemist_id"`
	PrescriptionID  *uuid.UUID       `json:"prescription_id"`
	DeliveryAddress string           `json:"delivery_address"`
	Items           []OrderItemInput `json:"items"`
}

type StatusUpdate struct {
	Status string `json:"status"`
}

type InventoryFilter struct {
	ChemistID uuid.UUID
	Search    string
	LowStock  bool
	Limit     int
	Offset    int
}

type OrderFilter struct {
	PatientID *uuid.UUID
	ChemistID *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}

// Dashboard summarises a chemist's store.
type Dashboard struct {
	OrdersByStatus map[string]int `json:"orders_by_status"`
	TodayRevenue   float64        `json:"today_revenue"`
	LowStockCount  int            `json:"low_stock_count"`
	ExpiringCount  int            `json:"expiring_count"`
}
