package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/clock"
	"github.com/klinik/klinik/internal/platform/policy"
)

type Service struct {
	repo   Repository
	vitals VitalSignRepository
	clock  clock.Clock
}

func NewService(repo Repository, vitals VitalSignRepository, clk clock.Clock) *Service {
	return &Service{repo: repo, vitals: vitals, clock: clk}
}

func (s *Service) Create(ctx context.Context, e *Entry) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceQueue, policy.ActionCreate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if e.PatientID == uuid.Nil {
		return apperror.Validation("patient_id is required")
	}
	if e.DoctorID == uuid.Nil {
		return apperror.Validation("doctor_id is required")
	}
	if e.VisitDate.IsZero() {
		return apperror.Validation("visit_date is required")
	}
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}
	if !e.Priority.Valid() {
		return apperror.Validation("priority must be normal or urgent")
	}

	active, err := s.repo.HasActiveEntry(ctx, e.PatientID, e.VisitDate)
	if err != nil {
		return err
	}
	if active {
		return apperror.Conflict("patient already has an active queue entry on %s",
			e.VisitDate.Format("2006-01-02"))
	}

	e.Status = StatusWaiting
	return s.repo.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceQueue, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceQueue, policy.ActionViewAny, nil); !d.Allowed {
		return nil, 0, apperror.Denied(d.Reason)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// transition authorizes action against the loaded entry, checks the edge,
// then applies the compare-and-swap update. Authorization runs before the
// state check so a denied caller learns nothing about the entry's state.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action policy.Action, to Status) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Queue{DoctorID: entry.DoctorID}
	if d := policy.Authorize(actor, policy.ResourceQueue, action, attrs); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	if !CanTransition(entry.Status, to) {
		return nil, apperror.Conflict("cannot move queue entry from %s to %s", entry.Status, to)
	}
	now := s.clock.Now()
	return s.repo.UpdateStatus(ctx, id, entry.Status, to, &now)
}

// Call summons the patient for triage, waiting→vitals.
func (s *Service) Call(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, id, policy.ActionCall, StatusVitals)
}

// Start begins the consultation, vitals→in_consultation.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, id, policy.ActionStart, StatusInConsultation)
}

// Complete closes the visit, in_consultation→completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, id, policy.ActionComplete, StatusCompleted)
}

// Cancel withdraws the entry; only waiting and vitals entries can be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.transition(ctx, id, policy.ActionCancel, StatusCancelled)
}

// SetStatus is the generic front-desk correction, still bound to the edge
// table; it cannot jump states the explicit operations could not.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to Status) (*Entry, error) {
	if !to.Valid() {
		return nil, apperror.Validation("unknown status %q", to)
	}
	return s.transition(ctx, id, policy.ActionUpdateStatus, to)
}

func (s *Service) RecordVitals(ctx context.Context, v *VitalSign) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceVitalSign, policy.ActionCreate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	entry, err := s.repo.GetByID(ctx, v.QueueEntryID)
	if err != nil {
		return err
	}
	if entry.Status != StatusVitals {
		return apperror.Conflict("vitals can only be recorded while the entry is in vitals, not %s", entry.Status)
	}
	v.RecordedBy = actor.ID
	return s.vitals.Create(ctx, v)
}

func (s *Service) GetVitals(ctx context.Context, queueEntryID uuid.UUID) (*VitalSign, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceVitalSign, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.vitals.GetByQueueEntry(ctx, queueEntryID)
}

func (s *Service) UpdateVitals(ctx context.Context, v *VitalSign) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceVitalSign, policy.ActionUpdate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	existing, err := s.vitals.GetByQueueEntry(ctx, v.QueueEntryID)
	if err != nil {
		return err
	}
	v.ID = existing.ID
	v.RecordedBy = existing.RecordedBy
	return s.vitals.Update(ctx, v)
}

func (s *Service) DeleteVitals(ctx context.Context, queueEntryID uuid.UUID) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceVitalSign, policy.ActionDelete, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	existing, err := s.vitals.GetByQueueEntry(ctx, queueEntryID)
	if err != nil {
		return err
	}
	return s.vitals.Delete(ctx, existing.ID)
}

// StatusFor reports the current status of an entry without a policy gate.
// Other domains use it for workflow preconditions, not for display.
func (s *Service) StatusFor(ctx context.Context, id uuid.UUID) (Status, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return entry.Status, nil
}
