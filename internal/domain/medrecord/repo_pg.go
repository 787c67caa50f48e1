package medrecord

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

const recordCols = `id, queue_entry_id, patient_id, doctor_id, subjective, objective,
	assessment, plan, is_locked, locked_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.QueueEntryID, &r.PatientID, &r.DoctorID, &r.Subjective,
		&r.Objective, &r.Assessment, &r.Plan, &r.IsLocked, &r.LockedAt,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("medical record")
	}
	return &r, err
}

func (r *repoPG) loadDiagnoses(ctx context.Context, rec *Record) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, record_id, code, description, is_primary, position
		FROM record_diagnoses WHERE record_id = $1 ORDER BY position`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	rec.Diagnoses = []Diagnosis{}
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.RecordID, &d.Code, &d.Description, &d.IsPrimary, &d.Position); err != nil {
			return err
		}
		rec.Diagnoses = append(rec.Diagnoses, d)
	}
	return rows.Err()
}

func insertDiagnoses(ctx context.Context, tx pgx.Tx, recordID uuid.UUID, diagnoses []Diagnosis) error {
	for i := range diagnoses {
		d := &diagnoses[i]
		d.ID = uuid.New()
		d.RecordID = recordID
		d.Position = i + 1
		if _, err := tx.Exec(ctx, `
			INSERT INTO record_diagnoses (id, record_id, code, description, is_primary, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			d.ID, d.RecordID, d.Code, d.Description, d.IsPrimary, d.Position); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO medical_records (id, queue_entry_id, patient_id, doctor_id,
				subjective, objective, assessment, plan)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING created_at, updated_at`,
			rec.ID, rec.QueueEntryID, rec.PatientID, rec.DoctorID,
			rec.Subjective, rec.Objective, rec.Assessment, rec.Plan,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return err
		}
		return insertDiagnoses(ctx, tx, rec.ID, rec.Diagnoses)
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDiagnoses(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) GetByQueueEntry(ctx context.Context, queueEntryID uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE queue_entry_id = $1`, queueEntryID))
	if err != nil {
		return nil, err
	}
	if err := r.loadDiagnoses(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE medical_records
			SET subjective=$2, objective=$3, assessment=$4, plan=$5, updated_at=NOW()
			WHERE id = $1 AND is_locked = FALSE`,
			rec.ID, rec.Subjective, rec.Objective, rec.Assessment, rec.Plan)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("medical record")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM record_diagnoses WHERE record_id = $1`, rec.ID); err != nil {
			return err
		}
		return insertDiagnoses(ctx, tx, rec.ID, rec.Diagnoses)
	})
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	query := `SELECT ` + recordCols + ` FROM medical_records WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM medical_records WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(cond string, val interface{}) {
		c := fmt.Sprintf(cond, idx)
		query += c
		countQuery += c
		args = append(args, val)
		idx++
	}
	if f.PatientID != nil {
		add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.DoctorID != nil {
		add(` AND doctor_id = $%d`, *f.DoctorID)
	}
	if f.Locked != nil {
		add(` AND is_locked = $%d`, *f.Locked)
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

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, rec := range items {
		if err := r.loadDiagnoses(ctx, rec); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) LockCreatedBefore(ctx context.Context, cutoff, lockedAt time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE medical_records SET is_locked = TRUE, locked_at = $2, updated_at = NOW()
		WHERE is_locked = FALSE AND created_at < $1`,
		cutoff, lockedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const addendumCols = `id, record_id, doctor_id, note, created_at, updated_at`

func scanAddendum(row pgx.Row) (*Addendum, error) {
	var a Addendum
	err := row.Scan(&a.ID, &a.RecordID, &a.DoctorID, &a.Note, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("addendum")
	}
	return &a, err
}

func (r *repoPG) AddAddendum(ctx context.Context, a *Addendum) error {
	a.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO record_addendums (id, record_id, doctor_id, note)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		a.ID, a.RecordID, a.DoctorID, a.Note,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetAddendum(ctx context.Context, id uuid.UUID) (*Addendum, error) {
	return scanAddendum(r.pool.QueryRow(ctx,
		`SELECT `+addendumCols+` FROM record_addendums WHERE id = $1`, id))
}

func (r *repoPG) UpdateAddendum(ctx context.Context, a *Addendum) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE record_addendums SET note=$2, updated_at=NOW() WHERE id = $1`,
		a.ID, a.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("addendum")
	}
	return nil
}

func (r *repoPG) DeleteAddendum(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM record_addendums WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("addendum")
	}
	return nil
}

func (r *repoPG) ListAddendums(ctx context.Context, recordID uuid.UUID) ([]*Addendum, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+addendumCols+` FROM record_addendums WHERE record_id = $1 ORDER BY created_at`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Addendum
	for rows.Next() {
		a, err := scanAddendum(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
