package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, medical_record_id, notes, dispensed_at, dispensed_by, created_at, updated_at`

func scan(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.MedicalRecordID, &p.Notes, &p.DispensedAt, &p.DispensedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("prescription")
	}
	return &p, err
}

func (r *repoPG) loadItems(ctx context.Context, p *Prescription) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prescription_id, drug_name, dosage, frequency, duration, quantity, instructions, position
		FROM prescription_items WHERE prescription_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.Items = []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.DrugName, &it.Dosage, &it.Frequency,
			&it.Duration, &it.Quantity, &it.Instructions, &it.Position); err != nil {
			return err
		}
		p.Items = append(p.Items, it)
	}
	return rows.Err()
}

func insertItems(ctx context.Context, tx pgx.Tx, prescriptionID uuid.UUID, items []Item) error {
	for i := range items {
		it := &items[i]
		it.ID = uuid.New()
		it.PrescriptionID = prescriptionID
		it.Position = i + 1
		if _, err := tx.Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, drug_name, dosage, frequency, duration, quantity, instructions, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, it.PrescriptionID, it.DrugName, it.Dosage, it.Frequency, it.Duration,
			it.Quantity, it.Instructions, it.Position); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO prescriptions (id, medical_record_id, notes)
			VALUES ($1,$2,$3)
			RETURNING created_at, updated_at`,
			p.ID, p.MedicalRecordID, p.Notes,
		).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		return insertItems(ctx, tx, p.ID, p.Items)
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scan(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM prescriptions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) GetByMedicalRecord(ctx context.Context, recordID uuid.UUID) (*Prescription, error) {
	p, err := scan(r.pool.QueryRow(ctx,
		`SELECT `+cols+` FROM prescriptions WHERE medical_record_id = $1`, recordID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE prescriptions SET notes=$2, updated_at=NOW()
			WHERE id = $1 AND dispensed_at IS NULL`,
			p.ID, p.Notes)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("prescription")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM prescription_items WHERE prescription_id = $1`, p.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, p.ID, p.Items)
	})
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM prescriptions WHERE id = $1 AND dispensed_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("prescription")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, dispensed *bool, limit, offset int) ([]*Prescription, int, error) {
	query := `SELECT ` + cols + ` FROM prescriptions WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM prescriptions WHERE 1=1`
	var args []interface{}
	idx := 1

	if dispensed != nil {
		cond := ` AND dispensed_at IS NULL`
		if *dispensed {
			cond = ` AND dispensed_at IS NOT NULL`
		}
		query += cond
		countQuery += cond
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

	var items []*Prescription
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		if err := r.loadItems(ctx, p); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) MarkDispensed(ctx context.Context, id uuid.UUID, at time.Time, by uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prescriptions SET dispensed_at=$2, dispensed_by=$3, updated_at=NOW()
		WHERE id = $1 AND dispensed_at IS NULL`,
		id, at, by)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
