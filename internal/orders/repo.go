package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres store. Every read is scoped to the establishment.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, number, establishment_id, table_id, waiter_id, customer_id, status,
	subtotal, tax, tax_rate, total, paid_amount, notes, created_at, updated_at,
	paid_at, delivered_at, cancelled_at, cancelled_by, cancellation_reason`

const itemColumns = `id, order_id, product_id, product_name, quantity, unit_price, subtotal,
	notes, modifications, status, created_at, updated_at, started_at, completed_at,
	delivered_at, cancelled_at, cancelled_by, cancellation_reason`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.EstablishmentID, &o.TableID, &o.WaiterID, &o.CustomerID, &o.Status,
		&o.Subtotal, &o.Tax, &o.TaxRate, &o.Total, &o.PaidAmount, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
		&o.PaidAt, &o.DeliveredAt, &o.CancelledAt, &o.CancelledBy, &o.CancellationReason)
	return o, err
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal,
		&it.Notes, &it.Modifications, &it.Status, &it.CreatedAt, &it.UpdatedAt, &it.StartedAt, &it.CompletedAt,
		&it.DeliveredAt, &it.CancelledAt, &it.CancelledBy, &it.CancellationReason)
	return it, err
}

func (r *Repo) InsertOrder(ctx context.Context, o Order) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		o.ID, o.Number, o.EstablishmentID, o.TableID, o.WaiterID, o.CustomerID, o.Status,
		o.Subtotal, o.Tax, o.TaxRate, o.Total, o.PaidAmount, o.Notes, o.CreatedAt, o.UpdatedAt,
		o.PaidAt, o.DeliveredAt, o.CancelledAt, o.CancelledBy, o.CancellationReason)
	return err
}

func (r *Repo) GetOrder(ctx context.Context, establishmentID, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE id=$1 AND establishment_id=$2`, orderID, establishmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, NotFound("order", orderID)
	}
	return o, err
}

func (r *Repo) SaveOrder(ctx context.Context, o Order) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET
		table_id=$3, waiter_id=$4, customer_id=$5, status=$6, subtotal=$7, tax=$8, tax_rate=$9,
		total=$10, paid_amount=$11, notes=$12, updated_at=$13, paid_at=$14, delivered_at=$15,
		cancelled_at=$16, cancelled_by=$17, cancellation_reason=$18
		WHERE id=$1 AND establishment_id=$2`,
		o.ID, o.EstablishmentID, o.TableID, o.WaiterID, o.CustomerID, o.Status, o.Subtotal, o.Tax, o.TaxRate,
		o.Total, o.PaidAmount, o.Notes, o.UpdatedAt, o.PaidAt, o.DeliveredAt,
		o.CancelledAt, o.CancelledBy, o.CancellationReason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return NotFound("order", o.ID)
	}
	return nil
}

// DeleteOrder removes the order; items, payments and the status log cascade.
func (r *Repo) DeleteOrder(ctx context.Context, establishmentID, orderID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1 AND establishment_id=$2`, orderID, establishmentID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return NotFound("order", orderID)
	}
	return nil
}

func (r *Repo) InsertItem(ctx context.Context, it Item) error {
	mods := it.Modifications
	if mods == nil {
		mods = []string{}
	}
	_, err := r.DB.Exec(ctx, `INSERT INTO order_items(`+itemColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.Subtotal,
		it.Notes, mods, it.Status, it.CreatedAt, it.UpdatedAt, it.StartedAt, it.CompletedAt,
		it.DeliveredAt, it.CancelledAt, it.CancelledBy, it.CancellationReason)
	return err
}

func (r *Repo) GetItem(ctx context.Context, orderID, itemID string) (Item, error) {
	it, err := scanItem(r.DB.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE id=$1 AND order_id=$2`, itemID, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, NotFound("item", itemID)
	}
	return it, err
}

func (r *Repo) ListItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+itemColumns+` FROM order_items
		WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) SaveItem(ctx context.Context, it Item) error {
	mods := it.Modifications
	if mods == nil {
		mods = []string{}
	}
	ct, err := r.DB.Exec(ctx, `UPDATE order_items SET
		quantity=$3, subtotal=$4, notes=$5, modifications=$6, status=$7, updated_at=$8,
		started_at=$9, completed_at=$10, delivered_at=$11, cancelled_at=$12,
		cancelled_by=$13, cancellation_reason=$14
		WHERE id=$1 AND order_id=$2`,
		it.ID, it.OrderID, it.Quantity, it.Subtotal, it.Notes, mods, it.Status, it.UpdatedAt,
		it.StartedAt, it.CompletedAt, it.DeliveredAt, it.CancelledAt,
		it.CancelledBy, it.CancellationReason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return NotFound("item", it.ID)
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, orderID, itemID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM order_items WHERE id=$1 AND order_id=$2`, itemID, orderID)
	return err
}

func (r *Repo) AppendStatusChange(ctx context.Context, c StatusChange) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO order_status_changes
		(id, order_id, item_id, previous_status, new_status, changed_by, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.OrderID, c.ItemID, c.PreviousStatus, c.NewStatus, c.ChangedBy, c.Notes, c.CreatedAt)
	return err
}

// DeleteStatusChange removes a row appended by an operation that was rolled back.
func (r *Repo) DeleteStatusChange(ctx context.Context, orderID, changeID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM order_status_changes WHERE id=$1 AND order_id=$2`, changeID, orderID)
	return err
}

func (r *Repo) ListStatusChanges(ctx context.Context, orderID string) ([]StatusChange, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, order_id, item_id, previous_status, new_status, changed_by, notes, created_at
		FROM order_status_changes WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.ItemID, &c.PreviousStatus, &c.NewStatus, &c.ChangedBy, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TaxRate returns the establishment's configured rate in percent.
func (r *Repo) TaxRate(ctx context.Context, establishmentID string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.DB.QueryRow(ctx, `SELECT tax_rate FROM establishments WHERE id=$1`, establishmentID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, NotFound("establishment", establishmentID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load tax rate: %w", err)
	}
	return rate, nil
}
