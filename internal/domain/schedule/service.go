package schedule

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

func validateWindow(s *Schedule) error {
	if s.DoctorID == uuid.Nil {
		return apperror.Validation("doctor_id is required")
	}
	if s.Date.IsZero() {
		return apperror.Validation("date is required")
	}
	if s.StartTime == "" || s.EndTime == "" {
		return apperror.Validation("start_time and end_time are required")
	}
	if s.EndTime <= s.StartTime {
		return apperror.Validation("end_time must be after start_time")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, sch *Schedule) error {
	actor := auth.MustActor(ctx)
	// The create rule gates on the owning doctor, so doctors can only
	// publish their own schedule while admins publish for anyone.
	attrs := policy.Schedule{DoctorID: sch.DoctorID}
	if d := policy.Authorize(actor, policy.ResourceSchedule, policy.ActionCreate, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if err := validateWindow(sch); err != nil {
		return err
	}
	return s.repo.Create(ctx, sch)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceSchedule, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, sch *Schedule) error {
	existing, err := s.repo.GetByID(ctx, sch.ID)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Schedule{DoctorID: existing.DoctorID}
	if d := policy.Authorize(actor, policy.ResourceSchedule, policy.ActionUpdate, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	sch.DoctorID = existing.DoctorID
	if err := validateWindow(sch); err != nil {
		return err
	}
	return s.repo.Update(ctx, sch)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Schedule{DoctorID: existing.DoctorID}
	if d := policy.Authorize(actor, policy.ResourceSchedule, policy.ActionDelete, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Schedule, int, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceSchedule, policy.ActionViewAny, nil); !d.Allowed {
		return nil, 0, apperror.Denied(d.Reason)
	}
	return s.repo.List(ctx, f, limit, offset)
}
