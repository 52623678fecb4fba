package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, establishment_id, name, price, stock, stock_level, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.EstablishmentID, &p.Name, &p.Price, &p.Stock, &p.StockLevel, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) GetProduct(ctx context.Context, establishmentID, productID string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products
		WHERE id=$1 AND establishment_id=$2`, productID, establishmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, NotFound("product", productID)
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context, establishmentID string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE establishment_id=$1 ORDER BY name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdjustStock applies delta in a single conditional UPDATE; the row lock taken by
// the UPDATE serialises concurrent orders on the same product.
func (r *Repo) AdjustStock(ctx context.Context, establishmentID, productID string, delta int, policy StockPolicy) (Product, bool, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET
			stock = stock + $3,
			stock_level = CASE
				WHEN stock + $3 <= 0 THEN 'out'
				WHEN stock + $3 <= $4 THEN 'low'
				WHEN stock + $3 <= $5 THEN 'medium'
				ELSE 'good' END,
			updated_at = now()
		WHERE id=$1 AND establishment_id=$2 AND stock + $3 >= 0
		RETURNING `+productColumns,
		productID, establishmentID, delta, policy.LowMax, policy.MediumMax))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, err
	}
	// either missing or the delta would go negative
	cur, err := r.GetProduct(ctx, establishmentID, productID)
	if err != nil {
		return Product{}, false, err
	}
	return cur, false, nil
}

func (r *Repo) GetTable(ctx context.Context, establishmentID, tableID string) (Table, error) {
	var t Table
	err := r.DB.QueryRow(ctx, `SELECT id, establishment_id, label, status, current_order_id, updated_at
		FROM dining_tables WHERE id=$1 AND establishment_id=$2`, tableID, establishmentID).
		Scan(&t.ID, &t.EstablishmentID, &t.Label, &t.Status, &t.CurrentOrderID, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Table{}, NotFound("table", tableID)
	}
	return t, err
}

func (r *Repo) OccupyTable(ctx context.Context, establishmentID, tableID, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE dining_tables SET status='occupied', current_order_id=$3, updated_at=now()
		WHERE id=$1 AND establishment_id=$2
		  AND (status IN ('available','reserved') OR (status='occupied' AND current_order_id=$3))`,
		tableID, establishmentID, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) ReleaseTable(ctx context.Context, establishmentID, tableID, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE dining_tables SET status='available', current_order_id='', updated_at=now()
		WHERE id=$1 AND establishment_id=$2 AND status='occupied'
		  AND (current_order_id=$3 OR current_order_id='')`,
		tableID, establishmentID, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

const paymentColumns = `id, order_id, establishment_id, method_id, amount, reference, notes, processed_by,
	voided, voided_by, void_reason, voided_at, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.EstablishmentID, &p.MethodID, &p.Amount, &p.Reference, &p.Notes, &p.ProcessedBy,
		&p.Voided, &p.VoidedBy, &p.VoidReason, &p.VoidedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO payments(`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.OrderID, p.EstablishmentID, p.MethodID, p.Amount, p.Reference, p.Notes, p.ProcessedBy,
		p.Voided, p.VoidedBy, p.VoidReason, p.VoidedAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repo) GetPayment(ctx context.Context, establishmentID, orderID, paymentID string) (Payment, error) {
	p, err := scanPayment(r.DB.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE id=$1 AND order_id=$2 AND establishment_id=$3`, paymentID, orderID, establishmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, NotFound("payment", paymentID)
	}
	return p, err
}

func (r *Repo) ListPayments(ctx context.Context, orderID string) ([]Payment, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) MarkPaymentVoided(ctx context.Context, p Payment) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE payments SET voided=TRUE, voided_by=$2, void_reason=$3, voided_at=$4, updated_at=$5
		WHERE id=$1 AND NOT voided`, p.ID, p.VoidedBy, p.VoidReason, p.VoidedAt, p.UpdatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) UnvoidPayment(ctx context.Context, p Payment) error {
	_, err := r.DB.Exec(ctx, `UPDATE payments SET voided=FALSE, voided_by='', void_reason='', voided_at=NULL, updated_at=$2
		WHERE id=$1`, p.ID, p.UpdatedAt)
	return err
}
