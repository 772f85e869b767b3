package pharmacy

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/internal/platform/realtime"
)

// -- In-memory repositories --

type memStore struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*InventoryItem
	batches map[uuid.UUID]*Batch
	orders  map[uuid.UUID]*Order
	today   time.Time
}

func newMemStore(today time.Time) *memStore {
	return &memStore{
		items:   map[uuid.UUID]*InventoryItem{},
		batches: map[uuid.UUID]*Batch{},
		orders:  map[uuid.UUID]*Order{},
		today:   today,
	}
}

func (m *memStore) stockLocked(id uuid.UUID) int {
	n := 0
	for _, b := range m.batches {
		if b.InventoryID == id && !b.ExpiryDate.Before(m.today) {
			n += b.Quantity
		}
	}
	return n
}

func (m *memStore) withStock(it *InventoryItem) *InventoryItem {
	cp := *it
	cp.Stock = m.stockLocked(it.ID)
	cp.LowStock = cp.Stock <= cp.ReorderLevel
	return &cp
}

type memInventory struct{ *memStore }

func (m memInventory) Create(_ context.Context, it *InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it.ID = uuid.New()
	it.CreatedAt = time.Now()
	it.UpdatedAt = it.CreatedAt
	it.LowStock = it.Stock <= it.ReorderLevel
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m memInventory) Get(_ context.Context, id uuid.UUID) (*InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("inventory item")
	}
	return m.withStock(it), nil
}

func (m memInventory) Update(_ context.Context, it *InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m memInventory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m memInventory) List(_ context.Context, f InventoryFilter) ([]*InventoryItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*InventoryItem
	for _, it := range m.items {
		if it.ChemistID != f.ChemistID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(it.MedicineName), strings.ToLower(f.Search)) {
			continue
		}
		full := m.withStock(it)
		if f.LowStock && !full.LowStock {
			continue
		}
		out = append(out, full)
	}
	return out, len(out), nil
}

func (m memInventory) AddBatch(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	b.ReceivedAt = time.Now()
	cp := *b
	m.batches[b.ID] = &cp
	return nil
}

func (m memInventory) Expiring(_ context.Context, chemistID uuid.UUID, today, until time.Time) ([]*ExpiringBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*ExpiringBatch{}
	for _, b := range m.batches {
		it := m.items[b.InventoryID]
		if it == nil || it.ChemistID != chemistID || b.Quantity == 0 {
			continue
		}
		if b.ExpiryDate.Before(today) || b.ExpiryDate.After(until) {
			continue
		}
		out = append(out, &ExpiringBatch{Batch: *b, MedicineName: it.MedicineName, DaysLeft: daysBetween(today, b.ExpiryDate)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (m memInventory) UsableBatches(_ context.Context, inventoryID uuid.UUID, today time.Time) ([]*Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Batch
	for _, b := range m.batches {
		if b.InventoryID == inventoryID && b.Quantity > 0 && !b.ExpiryDate.Before(today) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (m memInventory) SetBatchQuantity(_ context.Context, id uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[id].Quantity = qty
	return nil
}

func (m memInventory) CountLowStock(_ context.Context, chemistID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.ChemistID == chemistID && m.stockLocked(it.ID) <= it.ReorderLevel {
			n++
		}
	}
	return n, nil
}

type memOrders struct{ *memStore }

func (m memOrders) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m memOrders) Get(_ context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	cp := *o
	return &cp, nil
}

func (m memOrders) List(_ context.Context, f OrderFilter) ([]*Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if f.PatientID != nil && o.PatientID != *f.PatientID {
			continue
		}
		if f.ChemistID != nil && o.ChemistID != *f.ChemistID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (m memOrders) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return apperr.Transition(from, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func (m memOrders) CountByStatus(_ context.Context, chemistID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, o := range m.orders {
		if o.ChemistID == chemistID {
			out[o.Status]++
		}
	}
	return out, nil
}

func (m memOrders) DeliveredRevenue(_ context.Context, chemistID uuid.UUID, _ time.Time) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, o := range m.orders {
		if o.ChemistID == chemistID && o.Status == StatusDelivered {
			total += o.TotalAmount
		}
	}
	return total, nil
}

func (m memOrders) CountCreatedSince(context.Context, time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders), nil
}

// snapshotTx restores batch quantities when the transaction body fails.
type snapshotTx struct{ *memStore }

func (t snapshotTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	saved := map[uuid.UUID]int{}
	for id, b := range t.batches {
		saved[id] = b.Quantity
	}
	t.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.mu.Lock()
		for id, q := range saved {
			t.batches[id].Quantity = q
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

var (
	_ InventoryRepository = memInventory{}
	_ OrderRepository     = memOrders{}
	_ db.TxManager        = snapshotTx{}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Topic+"/"+e.Type)
	}
	return out
}

// -- Fixture --

var testToday = time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *memStore
	events  *recordingPublisher
	chemist Caller
	patient Caller
}

func newFixture() *fixture {
	store := newMemStore(startOfDay(testToday))
	events := &recordingPublisher{}
	svc := NewService(memInventory{store}, memOrders{store}, snapshotTx{store}, events, zerolog.Nop())
	svc.now = func() time.Time { return testToday }
	return &fixture{
		svc:     svc,
		store:   store,
		events:  events,
		chemist: Caller{ID: uuid.New(), Role: auth.RoleChemist},
		patient: Caller{ID: uuid.New(), Role: auth.RolePatient},
	}
}

func (f *fixture) stockItem(t *testing.T, name string, price float64, batches map[string]int) *InventoryItem {
	t.Helper()
	ctx := context.Background()
	it, err := f.svc.CreateItem(ctx, f.chemist.ID, InventoryInput{MedicineName: name, UnitPrice: price, ReorderLevel: 5})
	if err != nil {
		t.Fatal(err)
	}
	for expiry, qty := range batches {
		if _, err := f.svc.AddBatch(ctx, f.chemist.ID, it.ID, BatchInput{BatchNumber: "B-" + expiry, Quantity: qty, ExpiryDate: expiry}); err != nil {
			t.Fatal(err)
		}
	}
	return it
}

func (f *fixture) place(t *testing.T, items ...OrderItemInput) *Order {
	t.Helper()
	o, err := f.svc.PlaceOrder(context.Background(), f.patient.ID, PlaceOrderRequest{
		ChemistID: f.chemist.ID, DeliveryAddress: "14 Lake View, Pune", Items: items,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}

func (f *fixture) advance(t *testing.T, id uuid.UUID, statuses ...string) {
	t.Helper()
	for _, st := range statuses {
		if _, err := f.svc.UpdateStatus(context.Background(), f.chemist, id, st); err != nil {
			t.Fatalf("move to %s: %v", st, err)
		}
	}
}

// -- Tests --

func TestService_AddBatch_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	it := f.stockItem(t, "Cetirizine", 2.5, nil)

	cases := []BatchInput{
		{BatchNumber: "X", Quantity: 0, ExpiryDate: "2027-01-01"},
		{BatchNumber: "X", Quantity: 10, ExpiryDate: "2026-05-01"},
		{BatchNumber: "X", Quantity: 10, ExpiryDate: "01/01/2027"},
		{BatchNumber: "", Quantity: 10, ExpiryDate: "2027-01-01"},
	}
	for _, in := range cases {
		if _, err := f.svc.AddBatch(ctx, f.chemist.ID, it.ID, in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", in, err)
		}
	}
	if _, err := f.svc.AddBatch(ctx, uuid.New(), it.ID, BatchInput{BatchNumber: "X", Quantity: 1, ExpiryDate: "2027-01-01"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another chemist, got %v", err)
	}
}

func TestService_StockAndLowStock(t *testing.T) {
	f := newFixture()
	f.stockItem(t, "Amoxicillin", 8, map[string]int{"2026-12-01": 20})
	f.stockItem(t, "Ibuprofen", 3, map[string]int{"2026-09-01": 4})

	items, _, err := f.svc.ListItems(context.Background(), InventoryFilter{ChemistID: f.chemist.ID, LowStock: true, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].MedicineName != "Ibuprofen" || items[0].Stock != 4 {
		t.Errorf("expected only Ibuprofen low on stock, got %+v", items)
	}
}

func TestService_PlaceOrder(t *testing.T) {
	f := newFixture()
	a := f.stockItem(t, "Amoxicillin", 8.5, map[string]int{"2026-12-01": 20})
	b := f.stockItem(t, "Paracetamol", 1.25, map[string]int{"2026-10-01": 100})

	o := f.place(t, OrderItemInput{InventoryID: a.ID, Quantity: 10}, OrderItemInput{InventoryID: b.ID, Quantity: 4})
	if o.Status != StatusPlaced || o.TotalAmount != 90 {
		t.Errorf("expected placed order totalling 90, got %s %.2f", o.Status, o.TotalAmount)
	}
	got := f.events.topics()
	want := []string{
		realtime.ChemistTopic(f.chemist.ID) + "/order.created",
		realtime.PatientTopic(f.patient.ID) + "/order.created",
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("unexpected events %v", got)
	}
}

func TestService_PlaceOrder_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.stockItem(t, "Amoxicillin", 8, map[string]int{"2026-12-01": 3})
	other := Caller{ID: uuid.New(), Role: auth.RoleChemist}
	foreign, _ := f.svc.CreateItem(ctx, other.ID, InventoryInput{MedicineName: "Zinc", UnitPrice: 1})

	base := PlaceOrderRequest{ChemistID: f.chemist.ID, DeliveryAddress: "addr"}

	req := base
	req.Items = []OrderItemInput{{InventoryID: a.ID, Quantity: 4}}
	if _, err := f.svc.PlaceOrder(ctx, f.patient.ID, req); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict for more than stock, got %v", err)
	}

	req.Items = []OrderItemInput{{InventoryID: foreign.ID, Quantity: 1}}
	if _, err := f.svc.PlaceOrder(ctx, f.patient.ID, req); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for another chemist's item, got %v", err)
	}

	req.Items = nil
	if _, err := f.svc.PlaceOrder(ctx, f.patient.ID, req); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation for empty items, got %v", err)
	}
}

func TestService_DeliveryDrawsStockFEFO(t *testing.T) {
	f := newFixture()
	it := f.stockItem(t, "Metformin", 2, map[string]int{"2026-06-01": 5, "2027-03-01": 20})
	o := f.place(t, OrderItemInput{InventoryID: it.ID, Quantity: 8})

	f.advance(t, o.ID, StatusAccepted, StatusPacked, StatusDispatched, StatusDelivered)

	var soon, late int
	for _, b := range f.store.batches {
		switch b.ExpiryDate.Format(dateLayout) {
		case "2026-06-01":
			soon = b.Quantity
		case "2027-03-01":
			late = b.Quantity
		}
	}
	if soon != 0 || late != 17 {
		t.Errorf("expected earliest batch drained first (0, 17), got (%d, %d)", soon, late)
	}
}

func TestService_DeliveryInsufficientStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	it := f.stockItem(t, "Insulin", 300, map[string]int{"2026-06-01": 2, "2026-07-01": 2})
	o := f.place(t, OrderItemInput{InventoryID: it.ID, Quantity: 3})
	f.advance(t, o.ID, StatusAccepted, StatusPacked, StatusDispatched)

	// Stock sold elsewhere after the order was placed.
	for _, b := range f.store.batches {
		if b.ExpiryDate.Format(dateLayout) == "2026-07-01" {
			b.Quantity = 0
		}
	}

	_, err := f.svc.UpdateStatus(ctx, f.chemist, o.ID, StatusDelivered)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	stored, _ := f.svc.GetOrder(ctx, f.chemist, o.ID)
	if stored.Status != StatusDispatched {
		t.Errorf("order must stay dispatched, got %s", stored.Status)
	}
	for _, b := range f.store.batches {
		if b.ExpiryDate.Format(dateLayout) == "2026-06-01" && b.Quantity != 2 {
			t.Errorf("partial draw must be rolled back, batch has %d", b.Quantity)
		}
	}
}

func TestService_StatusRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	it := f.stockItem(t, "ORS", 1, map[string]int{"2026-12-01": 50})

	o := f.place(t, OrderItemInput{InventoryID: it.ID, Quantity: 1})
	if _, err := f.svc.UpdateStatus(ctx, f.chemist, o.ID, StatusPacked); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected skip to be rejected, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.patient, o.ID, StatusAccepted); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected patient accept to be forbidden, got %v", err)
	}
	stranger := Caller{ID: uuid.New(), Role: auth.RoleChemist}
	if _, err := f.svc.UpdateStatus(ctx, stranger, o.ID, StatusAccepted); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected other chemist to get not found, got %v", err)
	}

	f.advance(t, o.ID, StatusAccepted)
	if got, err := f.svc.UpdateStatus(ctx, f.patient, o.ID, StatusCancelled); err != nil || got.Status != StatusCancelled {
		t.Errorf("patient cancel from accepted: %v %v", got, err)
	}

	o2 := f.place(t, OrderItemInput{InventoryID: it.ID, Quantity: 1})
	f.advance(t, o2.ID, StatusAccepted, StatusPacked)
	if _, err := f.svc.UpdateStatus(ctx, f.chemist, o2.ID, StatusCancelled); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected cancel after packing rejected, got %v", err)
	}
}

func TestService_Dashboard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	it := f.stockItem(t, "Azithromycin", 25, map[string]int{"2026-05-20": 10, "2027-01-01": 30})
	f.stockItem(t, "Vitamin D", 5, map[string]int{"2027-01-01": 2})

	o := f.place(t, OrderItemInput{InventoryID: it.ID, Quantity: 4})
	f.advance(t, o.ID, StatusAccepted, StatusPacked, StatusDispatched, StatusDelivered)
	f.place(t, OrderItemInput{InventoryID: it.ID, Quantity: 1})

	d, err := f.svc.Dashboard(ctx, f.chemist.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.OrdersByStatus[StatusDelivered] != 1 || d.OrdersByStatus[StatusPlaced] != 1 || d.OrdersByStatus[StatusPacked] != 0 {
		t.Errorf("unexpected status counts %v", d.OrdersByStatus)
	}
	if d.TodayRevenue != 100 {
		t.Errorf("expected revenue 100, got %.2f", d.TodayRevenue)
	}
	if d.LowStockCount != 1 {
		t.Errorf("expected 1 low stock item, got %d", d.LowStockCount)
	}
	if d.ExpiringCount != 1 {
		t.Errorf("expected 1 expiring batch, got %d", d.ExpiringCount)
	}
}

func TestService_Expiring(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.stockItem(t, "Cough Syrup", 60, map[string]int{"2026-05-11": 3, "2026-08-01": 3})

	items, err := f.svc.Expiring(ctx, f.chemist.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].DaysLeft != 10 {
		t.Errorf("expected one batch 10 days from expiry, got %+v", items)
	}
	if _, err := f.svc.Expiring(ctx, f.chemist.ID, 500); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
