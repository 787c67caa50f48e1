package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/policy"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) authorize(ctx context.Context, action policy.Action) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourcePatient, action, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := s.authorize(ctx, policy.ActionCreate); err != nil {
		return err
	}
	if p.FullName == "" {
		return apperror.Validation("full_name is required")
	}
	if p.Sex != nil && *p.Sex != "male" && *p.Sex != "female" {
		return apperror.Validation("sex must be male or female")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if err := s.authorize(ctx, policy.ActionView); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if err := s.authorize(ctx, policy.ActionUpdate); err != nil {
		return err
	}
	if p.FullName == "" {
		return apperror.Validation("full_name is required")
	}
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.MRN = existing.MRN
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.authorize(ctx, policy.ActionDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	if err := s.authorize(ctx, policy.ActionViewAny); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, nameFilter, limit, offset)
}
