package queue

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

const entryCols = `id, patient_id, doctor_id, visit_date, queue_number, status, priority,
	complaint, called_at, started_at, completed_at, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.VisitDate, &e.QueueNumber,
		&e.Status, &e.Priority, &e.Complaint, &e.CalledAt, &e.StartedAt, &e.CompletedAt,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("queue entry")
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	// The INSERT..SELECT computes the next number under the transaction;
	// the unique (doctor_id, visit_date, queue_number) index catches the
	// race if two inserts read the same max, failing one of them.
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO queue_entries (id, patient_id, doctor_id, visit_date, queue_number, status, priority, complaint)
			SELECT $1, $2, $3, $4, COALESCE(MAX(queue_number), 0) + 1, $5, $6, $7
			FROM queue_entries WHERE doctor_id = $3 AND visit_date = $4
			RETURNING queue_number, status, created_at, updated_at`,
			e.ID, e.PatientID, e.DoctorID, e.VisitDate, e.Status, e.Priority, e.Complaint,
		).Scan(&e.QueueNumber, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE id = $1`, id))
}

func (r *repoPG) HasActiveEntry(ctx context.Context, patientID uuid.UUID, visitDate time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE patient_id = $1 AND visit_date = $2
			  AND status IN ('waiting', 'vitals', 'in_consultation')
		)`, patientID, visitDate).Scan(&exists)
	return exists, err
}

// stampColumn maps a target status to the timestamp column it sets.
func stampColumn(to Status) string {
	switch to {
	case StatusVitals:
		return "called_at"
	case StatusInConsultation:
		return "started_at"
	case StatusCompleted:
		return "completed_at"
	}
	return ""
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, stamp *time.Time) (*Entry, error) {
	query := `UPDATE queue_entries SET status = $3, updated_at = NOW()`
	if col := stampColumn(to); col != "" && stamp != nil {
		query += fmt.Sprintf(`, %s = $4`, col)
	}
	query += ` WHERE id = $1 AND status = $2 RETURNING ` + entryCols

	var row pgx.Row
	if col := stampColumn(to); col != "" && stamp != nil {
		row = r.pool.QueryRow(ctx, query, id, from, to, *stamp)
	} else {
		row = r.pool.QueryRow(ctx, query, id, from, to)
	}

	e, err := scanEntry(row)
	if apperror.IsNotFound(err) {
		// The CAS missed. Re-read to tell a stale status from a missing row.
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperror.Conflict("queue entry is %s, not %s", current.Status, from)
	}
	return e, err
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	query := `SELECT ` + entryCols + ` FROM queue_entries WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM queue_entries WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(cond string, val interface{}) {
		c := fmt.Sprintf(cond, idx)
		query += c
		countQuery += c
		args = append(args, val)
		idx++
	}
	if f.DoctorID != nil {
		add(` AND doctor_id = $%d`, *f.DoctorID)
	}
	if f.PatientID != nil {
		add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.VisitDate != nil {
		add(` AND visit_date = $%d`, *f.VisitDate)
	}
	if f.Status != nil {
		add(` AND status = $%d`, *f.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY visit_date, queue_number LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

type vitalRepoPG struct{ pool *pgxpool.Pool }

func NewVitalSignRepoPG(pool *pgxpool.Pool) VitalSignRepository { return &vitalRepoPG{pool: pool} }

const vitalCols = `id, queue_entry_id, systolic_bp, diastolic_bp, heart_rate, resp_rate,
	temperature_c, weight_kg, height_cm, o2_saturation, notes, recorded_by, created_at, updated_at`

func scanVital(row pgx.Row) (*VitalSign, error) {
	var v VitalSign
	err := row.Scan(&v.ID, &v.QueueEntryID, &v.SystolicBP, &v.DiastolicBP, &v.HeartRate,
		&v.RespRate, &v.TemperatureC, &v.WeightKg, &v.HeightCm, &v.O2Saturation, &v.Notes,
		&v.RecordedBy, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("vital signs")
	}
	return &v, err
}

func (r *vitalRepoPG) Create(ctx context.Context, v *VitalSign) error {
	v.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vital_signs (id, queue_entry_id, systolic_bp, diastolic_bp, heart_rate,
			resp_rate, temperature_c, weight_kg, height_cm, o2_saturation, notes, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		v.ID, v.QueueEntryID, v.SystolicBP, v.DiastolicBP, v.HeartRate, v.RespRate,
		v.TemperatureC, v.WeightKg, v.HeightCm, v.O2Saturation, v.Notes, v.RecordedBy)
	return err
}

func (r *vitalRepoPG) GetByQueueEntry(ctx context.Context, queueEntryID uuid.UUID) (*VitalSign, error) {
	return scanVital(r.pool.QueryRow(ctx,
		`SELECT `+vitalCols+` FROM vital_signs WHERE queue_entry_id = $1`, queueEntryID))
}

func (r *vitalRepoPG) Update(ctx context.Context, v *VitalSign) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE vital_signs SET systolic_bp=$2, diastolic_bp=$3, heart_rate=$4, resp_rate=$5,
			temperature_c=$6, weight_kg=$7, height_cm=$8, o2_saturation=$9, notes=$10, updated_at=NOW()
		WHERE id = $1`,
		v.ID, v.SystolicBP, v.DiastolicBP, v.HeartRate, v.RespRate, v.TemperatureC,
		v.WeightKg, v.HeightCm, v.O2Saturation, v.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("vital signs")
	}
	return nil
}

func (r *vitalRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vital_signs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("vital signs")
	}
	return nil
}
