package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	VisitDate *time.Time
	Status    *Status
}

type Repository interface {
	// Create inserts the entry and assigns the next queue_number for its
	// (doctor, visit_date) pair in a single transaction.
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
	// HasActiveEntry reports whether the patient already has a non-terminal
	// entry on the given date.
	HasActiveEntry(ctx context.Context, patientID uuid.UUID, visitDate time.Time) (bool, error)
	// UpdateStatus moves the entry from to to, compare-and-swap on the
	// current status so concurrent transitions cannot both win.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, stamp *time.Time) (*Entry, error)
}

type VitalSignRepository interface {
	Create(ctx context.Context, v *VitalSign) error
	GetByQueueEntry(ctx context.Context, queueEntryID uuid.UUID) (*VitalSign, error)
	Update(ctx context.Context, v *VitalSign) error
	Delete(ctx context.Context, id uuid.UUID) error
}
