package pharmacy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/db"
)

// -- Inventory --

type inventoryRepoPG struct{ pool *pgxpool.Pool }

func NewInventoryRepoPG(pool *pgxpool.Pool) InventoryRepository {
	return &inventoryRepoPG{pool: pool}
}

func (r *inventoryRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// stockExpr sums quantities of batches that have not expired.
const stockExpr = `COALESCE((SELECT SUM(b.quantity) FROM inventory_batches b
	WHERE b.inventory_id = i.id AND b.expiry_date >= CURRENT_DATE), 0)`

const inventorySelect = `SELECT i.id, i.chemist_id, i.medicine_name, i.generic_name, i.manufacturer,
	i.unit_price, i.reorder_level, ` + stockExpr + ` AS stock, i.created_at, i.updated_at
	FROM chemist_inventory i`

func scanInventory(row pgx.Row) (*InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(&it.ID, &it.ChemistID, &it.MedicineName, &it.GenericName, &it.Manufacturer,
		&it.UnitPrice, &it.ReorderLevel, &it.Stock, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "inventory item")
	}
	it.LowStock = it.Stock <= it.ReorderLevel
	return &it, nil
}

func (r *inventoryRepoPG) Create(ctx context.Context, it *InventoryItem) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chemist_inventory (id, chemist_id, medicine_name, generic_name, manufacturer, unit_price, reorder_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		it.ID, it.ChemistID, it.MedicineName, it.GenericName, it.Manufacturer, it.UnitPrice, it.ReorderLevel,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	it.LowStock = it.Stock <= it.ReorderLevel
	return apperr.FromDB(err, "inventory item")
}

func (r *inventoryRepoPG) Get(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return scanInventory(r.conn(ctx).QueryRow(ctx, inventorySelect+` WHERE i.id = $1`, id))
}

func (r *inventoryRepoPG) Update(ctx context.Context, it *InventoryItem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE chemist_inventory
		SET medicine_name=$2, generic_name=$3, manufacturer=$4, unit_price=$5, reorder_level=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		it.ID, it.MedicineName, it.GenericName, it.Manufacturer, it.UnitPrice, it.ReorderLevel,
	).Scan(&it.UpdatedAt)
	it.LowStock = it.Stock <= it.ReorderLevel
	return apperr.FromDB(err, "inventory item")
}

func (r *inventoryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM chemist_inventory WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB(err, "inventory item")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("inventory item")
	}
	return nil
}

func (r *inventoryRepoPG) List(ctx context.Context, f InventoryFilter) ([]*InventoryItem, int, error) {
	where := ` WHERE i.chemist_id = $1`
	args := []interface{}{f.ChemistID}
	idx := 2

	if f.Search != "" {
		where += fmt.Sprintf(` AND (i.medicine_name ILIKE $%d OR i.generic_name ILIKE $%d OR i.manufacturer ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.LowStock {
		where += ` AND ` + stockExpr + ` <= i.reorder_level`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM chemist_inventory i`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := inventorySelect + where +
		fmt.Sprintf(` ORDER BY i.medicine_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*InventoryItem{}
	for rows.Next() {
		it, err := scanInventory(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *inventoryRepoPG) AddBatch(ctx context.Context, b *Batch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_batches (id, inventory_id, batch_number, quantity, expiry_date)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING received_at`,
		b.ID, b.InventoryID, b.BatchNumber, b.Quantity, b.ExpiryDate).Scan(&b.ReceivedAt)
	return apperr.FromDB(err, "batch "+b.BatchNumber)
}

func (r *inventoryRepoPG) Expiring(ctx context.Context, chemistID uuid.UUID, today, until time.Time) ([]*ExpiringBatch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT b.id, b.inventory_id, b.batch_number, b.quantity, b.expiry_date, b.received_at, i.medicine_name
		FROM inventory_batches b
		JOIN chemist_inventory i ON i.id = b.inventory_id
		WHERE i.chemist_id = $1 AND b.quantity > 0 AND b.expiry_date >= $2 AND b.expiry_date <= $3
		ORDER BY b.expiry_date, i.medicine_name`, chemistID, today, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*ExpiringBatch{}
	for rows.Next() {
		var e ExpiringBatch
		if err := rows.Scan(&e.ID, &e.InventoryID, &e.BatchNumber, &e.Quantity, &e.ExpiryDate,
			&e.ReceivedAt, &e.MedicineName); err != nil {
			return nil, err
		}
		e.DaysLeft = daysBetween(today, e.ExpiryDate)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *inventoryRepoPG) UsableBatches(ctx context.Context, inventoryID uuid.UUID, today time.Time) ([]*Batch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, inventory_id, batch_number, quantity, expiry_date, received_at
		FROM inventory_batches
		WHERE inventory_id = $1 AND quantity > 0 AND expiry_date >= $2
		ORDER BY expiry_date, received_at
		FOR UPDATE`, inventoryID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Batch{}
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.InventoryID, &b.BatchNumber, &b.Quantity, &b.ExpiryDate, &b.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *inventoryRepoPG) SetBatchQuantity(ctx context.Context, batchID uuid.UUID, qty int) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE inventory_batches SET quantity = $2 WHERE id = $1`, batchID, qty)
	return err
}

func (r *inventoryRepoPG) CountLowStock(ctx context.Context, chemistID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM chemist_inventory i
		WHERE i.chemist_id = $1 AND `+stockExpr+` <= i.reorder_level`, chemistID).Scan(&n)
	return n, err
}

// -- Orders --

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const orderCols = `id, patient_id, chemist_id, prescription_id, status, total_amount,
	delivery_address, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PatientID, &o.ChemistID, &o.PrescriptionID, &o.Status, &o.TotalAmount,
		&o.DeliveryAddress, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "order")
	}
	return &o, nil
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO medicine_orders (id, patient_id, chemist_id, prescription_id, status, total_amount, delivery_address)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		o.ID, o.PatientID, o.ChemistID, o.PrescriptionID, o.Status, o.TotalAmount, o.DeliveryAddress,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return apperr.FromDB(err, "order")
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.New()
		it.OrderID = o.ID
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, inventory_id, medicine_name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, it.OrderID, it.InventoryID, it.MedicineName, it.Quantity, it.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepoPG) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	q := r.conn(ctx)
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderCols+` FROM medicine_orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, inventory_id, medicine_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY medicine_name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.Items = []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.InventoryID, &it.MedicineName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *orderRepoPG) List(ctx context.Context, f OrderFilter) ([]*Order, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.ChemistID != nil {
		where += fmt.Sprintf(` AND chemist_id = $%d`, idx)
		args = append(args, *f.ChemistID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicine_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderCols + ` FROM medicine_orders` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, o)
	}
	return items, total, rows.Err()
}

func (r *orderRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE medicine_orders SET status=$3, updated_at=NOW() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Transition(from, to)
	}
	return nil
}

func (r *orderRepoPG) CountByStatus(ctx context.Context, chemistID uuid.UUID) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM medicine_orders WHERE chemist_id = $1 GROUP BY status`, chemistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *orderRepoPG) DeliveredRevenue(ctx context.Context, chemistID uuid.UUID, since time.Time) (float64, error) {
	var total float64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0) FROM medicine_orders
		WHERE chemist_id = $1 AND status = 'delivered' AND updated_at >= $2`, chemistID, since).Scan(&total)
	return total, err
}

func (r *orderRepoPG) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicine_orders WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}
