package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByMedicalRecord(ctx context.Context, recordID uuid.UUID) (*Prescription, error)
	// Update replaces notes and the item list. Dispensed rows are never
	// matched; callers see not-found if they race the dispense.
	Update(ctx context.Context, p *Prescription) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, dispensed *bool, limit, offset int) ([]*Prescription, int, error)
	// MarkDispensed stamps dispensed_at/dispensed_by iff not yet dispensed
	// and reports whether the row was won.
	MarkDispensed(ctx context.Context, id uuid.UUID, at time.Time, by uuid.UUID) (bool, error)
}
