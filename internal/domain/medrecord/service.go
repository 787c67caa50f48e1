package medrecord

import (
	"context"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/policy"
)

// Visit is the slice of a queue entry the record workflow needs. The
// server wires an adapter over the queue service so this package never
// imports it.
type Visit struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Status    string
}

type VisitLookup interface {
	Visit(ctx context.Context, queueEntryID uuid.UUID) (Visit, error)
}

// statusInConsultation is the only visit state a record may be opened in.
const statusInConsultation = "in_consultation"

type Service struct {
	repo   Repository
	visits VisitLookup
}

func NewService(repo Repository, visits VisitLookup) *Service {
	return &Service{repo: repo, visits: visits}
}

func validateDiagnoses(diagnoses []Diagnosis) error {
	primaries := 0
	for _, d := range diagnoses {
		if d.Code == "" {
			return apperror.Validation("diagnosis code is required")
		}
		if d.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return apperror.Validation("at most one diagnosis may be primary")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, rec *Record) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionCreate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if rec.QueueEntryID == uuid.Nil {
		return apperror.Validation("queue_entry_id is required")
	}
	if err := validateDiagnoses(rec.Diagnoses); err != nil {
		return err
	}

	visit, err := s.visits.Visit(ctx, rec.QueueEntryID)
	if err != nil {
		return err
	}
	if visit.Status != statusInConsultation {
		return apperror.Conflict("records can only be opened during consultation, visit is %s", visit.Status)
	}

	rec.PatientID = visit.PatientID
	rec.DoctorID = visit.DoctorID
	return s.repo.Create(ctx, rec)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByQueueEntry(ctx context.Context, queueEntryID uuid.UUID) (*Record, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.GetByQueueEntry(ctx, queueEntryID)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionViewAny, nil); !d.Allowed {
		return nil, 0, apperror.Denied(d.Reason)
	}
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Update(ctx context.Context, rec *Record) error {
	existing, err := s.repo.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.MedicalRecord{Locked: existing.IsLocked}
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionUpdate, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if err := validateDiagnoses(rec.Diagnoses); err != nil {
		return err
	}
	rec.QueueEntryID = existing.QueueEntryID
	rec.PatientID = existing.PatientID
	rec.DoctorID = existing.DoctorID
	return s.repo.Update(ctx, rec)
}

func (s *Service) AddAddendum(ctx context.Context, a *Addendum) error {
	// Authorization runs before the record is loaded so a denied caller
	// cannot tell whether the record exists.
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionAddAddendum, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if a.Note == "" {
		return apperror.Validation("note is required")
	}
	if _, err := s.repo.GetByID(ctx, a.RecordID); err != nil {
		return err
	}
	a.DoctorID = actor.ID
	return s.repo.AddAddendum(ctx, a)
}

func (s *Service) UpdateAddendum(ctx context.Context, a *Addendum) error {
	existing, err := s.repo.GetAddendum(ctx, a.ID)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Addendum{DoctorID: existing.DoctorID}
	if d := policy.Authorize(actor, policy.ResourceAddendum, policy.ActionUpdate, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if a.Note == "" {
		return apperror.Validation("note is required")
	}
	return s.repo.UpdateAddendum(ctx, a)
}

func (s *Service) DeleteAddendum(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetAddendum(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Addendum{DoctorID: existing.DoctorID}
	if d := policy.Authorize(actor, policy.ResourceAddendum, policy.ActionDelete, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	return s.repo.DeleteAddendum(ctx, id)
}

func (s *Service) ListAddendums(ctx context.Context, recordID uuid.UUID) ([]*Addendum, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceMedicalRecord, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.ListAddendums(ctx, recordID)
}
