package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/clock"
	"github.com/klinik/klinik/internal/platform/policy"
)

type Service struct {
	repo  Repository
	clock clock.Clock
}

func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{repo: repo, clock: clk}
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return apperror.Validation("a prescription needs at least one item")
	}
	for _, it := range items {
		if it.DrugName == "" {
			return apperror.Validation("drug_name is required on every item")
		}
		if it.Quantity <= 0 {
			return apperror.Validation("quantity must be positive")
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Prescription) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionCreate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if p.MedicalRecordID == uuid.Nil {
		return apperror.Validation("medical_record_id is required")
	}
	if err := validateItems(p.Items); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByMedicalRecord(ctx context.Context, recordID uuid.UUID) (*Prescription, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.GetByMedicalRecord(ctx, recordID)
}

func (s *Service) List(ctx context.Context, dispensed *bool, limit, offset int) ([]*Prescription, int, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionViewAny, nil); !d.Allowed {
		return nil, 0, apperror.Denied(d.Reason)
	}
	return s.repo.List(ctx, dispensed, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Prescription) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Prescription{Dispensed: existing.Dispensed()}
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionUpdate, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if err := validateItems(p.Items); err != nil {
		return err
	}
	p.MedicalRecordID = existing.MedicalRecordID
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Prescription{Dispensed: existing.Dispensed()}
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionDelete, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	return s.repo.Delete(ctx, id)
}

// Dispense hands the prescription out. The policy denies a second dispense
// outright; the conditional UPDATE closes the window where two dispensers
// both read an undispensed row.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Prescription{Dispensed: existing.Dispensed()}
	if d := policy.Authorize(actor, policy.ResourcePrescription, policy.ActionDispense, attrs); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}

	won, err := s.repo.MarkDispensed(ctx, id, s.clock.Now(), actor.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperror.Conflict("prescription was already dispensed")
	}
	return s.repo.GetByID(ctx, id)
}
