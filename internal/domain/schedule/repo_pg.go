package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klinik/klinik/internal/platform/apperror"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, doctor_id, date, start_time, end_time, available, created_at, updated_at`

func scan(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.EndTime, &s.Available,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("schedule")
	}
	return &s, err
}

// uniqueViolation reports whether err is a postgres unique constraint error.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor_schedules (id, doctor_id, date, start_time, end_time, available)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime, s.Available)
	if uniqueViolation(err) {
		return apperror.Conflict("schedule already exists for doctor %s on %s",
			s.DoctorID, s.Date.Format("2006-01-02"))
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM doctor_schedules WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Schedule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctor_schedules SET date=$2, start_time=$3, end_time=$4, available=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Date, s.StartTime, s.EndTime, s.Available)
	if uniqueViolation(err) {
		return apperror.Conflict("schedule already exists for doctor %s on %s",
			s.DoctorID, s.Date.Format("2006-01-02"))
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("schedule")
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctor_schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("schedule")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Schedule, int, error) {
	query := `SELECT ` + cols + ` FROM doctor_schedules WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM doctor_schedules WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.DoctorID != nil {
		cond := fmt.Sprintf(` AND doctor_id = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Date != nil {
		cond := fmt.Sprintf(` AND date = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, *f.Date)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY date, start_time LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Schedule
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
