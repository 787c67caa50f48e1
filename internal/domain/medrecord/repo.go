package medrecord

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Locked    *bool
}

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByQueueEntry(ctx context.Context, queueEntryID uuid.UUID) (*Record, error)
	// Update persists the SOAP fields and replaces the diagnosis list.
	// The lock state is untouched; only the sweep sets it.
	Update(ctx context.Context, r *Record) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error)
	// LockCreatedBefore locks every unlocked record created before cutoff,
	// stamping lockedAt, and returns how many rows changed. Safe to run
	// repeatedly; already locked rows are never touched again.
	LockCreatedBefore(ctx context.Context, cutoff, lockedAt time.Time) (int64, error)

	AddAddendum(ctx context.Context, a *Addendum) error
	GetAddendum(ctx context.Context, id uuid.UUID) (*Addendum, error)
	UpdateAddendum(ctx context.Context, a *Addendum) error
	DeleteAddendum(ctx context.Context, id uuid.UUID) error
	ListAddendums(ctx context.Context, recordID uuid.UUID) ([]*Addendum, error)
}
