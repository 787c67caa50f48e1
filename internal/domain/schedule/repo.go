package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Filter struct {
	DoctorID *uuid.UUID
	Date     *time.Time
}

type Repository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Schedule, int, error)
}
