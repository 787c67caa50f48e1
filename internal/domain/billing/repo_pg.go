package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/db"
)

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository { return &serviceRepoPG{pool: pool} }

const serviceCols = `id, name, price, active, created_at, updated_at`

func scanService(row pgx.Row) (*ServiceItem, error) {
	var s ServiceItem
	err := row.Scan(&s.ID, &s.Name, &s.Price, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("service")
	}
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *ServiceItem) error {
	s.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (id, name, price, active)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		s.ID, s.Name, s.Price, s.Active,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceItem, error) {
	return scanService(r.pool.QueryRow(ctx, `SELECT `+serviceCols+` FROM services WHERE id = $1`, id))
}

func (r *serviceRepoPG) Update(ctx context.Context, s *ServiceItem) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services SET name=$2, price=$3, active=$4, updated_at=NOW() WHERE id = $1`,
		s.ID, s.Name, s.Price, s.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("service")
	}
	return nil
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("service")
	}
	return nil
}

func (r *serviceRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*ServiceItem, int, error) {
	query := `SELECT ` + serviceCols + ` FROM services`
	countQuery := `SELECT COUNT(*) FROM services`
	if activeOnly {
		query += ` WHERE active`
		countQuery += ` WHERE active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, query+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ServiceItem
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invoiceCols = `id, patient_id, queue_entry_id, subtotal, discount, tax, total,
	paid_amount, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PatientID, &inv.QueueEntryID, &inv.Subtotal, &inv.Discount,
		&inv.Tax, &inv.Total, &inv.PaidAmount, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("invoice")
	}
	return &inv, err
}

func (r *invoiceRepoPG) loadItems(ctx context.Context, inv *Invoice) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, service_id, description, quantity, unit_price, amount
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	inv.Items = []InvoiceItem{}
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ServiceID, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return err
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, items []InvoiceItem) error {
	for i := range items {
		it := &items[i]
		it.ID = uuid.New()
		it.InvoiceID = invoiceID
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, service_id, description, quantity, unit_price, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.InvoiceID, it.ServiceID, it.Description, it.Quantity, it.UnitPrice, it.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO invoices (id, patient_id, queue_entry_id, subtotal, discount, tax, total, paid_amount, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,0,'pending')
			RETURNING paid_amount, status, created_at, updated_at`,
			inv.ID, inv.PatientID, inv.QueueEntryID, inv.Subtotal, inv.Discount, inv.Tax, inv.Total,
		).Scan(&inv.PaidAmount, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return err
		}
		return insertItems(ctx, tx, inv.ID, inv.Items)
	})
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE invoices SET subtotal=$2, discount=$3, tax=$4, total=$5, updated_at=NOW()
			WHERE id = $1 AND status = 'pending'`,
			inv.ID, inv.Subtotal, inv.Discount, inv.Tax, inv.Total)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("invoice")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, inv.ID, inv.Items)
	})
}

func (r *invoiceRepoPG) List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoices WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM invoices WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.PatientID != nil {
		cond := fmt.Sprintf(` AND patient_id = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != nil {
		cond := fmt.Sprintf(` AND status = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.Status)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, inv := range items {
		if err := r.loadItems(ctx, inv); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *invoiceRepoPG) Cancel(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `
		UPDATE invoices SET status='cancelled', updated_at=NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+invoiceCols, id))
	if apperror.IsNotFound(err) {
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperror.Conflict("only pending invoices can be cancelled, invoice is %s", current.Status)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepoPG) AddPayment(ctx context.Context, p *Payment) (*Invoice, error) {
	p.ID = uuid.New()
	var inv *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var total, paid int64
		var status InvoiceStatus
		err := tx.QueryRow(ctx, `
			SELECT total, paid_amount, status FROM invoices WHERE id = $1 FOR UPDATE`,
			p.InvoiceID).Scan(&total, &paid, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("invoice")
		}
		if err != nil {
			return err
		}
		if status != StatusPending && status != StatusPartial {
			return apperror.Conflict("invoice is %s and accepts no payments", status)
		}
		if p.Amount > total-paid {
			return apperror.Validation("payment of %d exceeds the %d outstanding", p.Amount, total-paid)
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO payments (id, invoice_id, amount, method, reference, received_by)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at`,
			p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.ReceivedBy,
		).Scan(&p.CreatedAt); err != nil {
			return err
		}

		newPaid := paid + p.Amount
		newStatus := DeriveStatus(newPaid, total)
		inv, err = scanInvoice(tx.QueryRow(ctx, `
			UPDATE invoices SET paid_amount=$2, status=$3, updated_at=NOW()
			WHERE id = $1
			RETURNING `+invoiceCols,
			p.InvoiceID, newPaid, newStatus))
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, method, reference, received_by, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference,
			&p.ReceivedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}
