package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/policy"
)

type Service struct {
	services ServiceRepository
	invoices InvoiceRepository
}

func NewService(services ServiceRepository, invoices InvoiceRepository) *Service {
	return &Service{services: services, invoices: invoices}
}

// Catalog operations.

func (s *Service) CreateServiceItem(ctx context.Context, item *ServiceItem) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceService, policy.ActionCreate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if item.Name == "" {
		return apperror.Validation("name is required")
	}
	if item.Price < 0 {
		return apperror.Validation("price must not be negative")
	}
	return s.services.Create(ctx, item)
}

func (s *Service) GetServiceItem(ctx context.Context, id uuid.UUID) (*ServiceItem, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceService, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.services.GetByID(ctx, id)
}

func (s *Service) UpdateServiceItem(ctx context.Context, item *ServiceItem) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceService, policy.ActionUpdate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if item.Name == "" {
		return apperror.Validation("name is required")
	}
	if item.Price < 0 {
		return apperror.Validation("price must not be negative")
	}
	return s.services.Update(ctx, item)
}

func (s *Service) DeleteServiceItem(ctx context.Context, id uuid.UUID) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceService, policy.ActionDelete, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	return s.services.Delete(ctx, id)
}

func (s *Service) ListServiceItems(ctx context.Context, activeOnly bool, limit, offset int) ([]*ServiceItem, int, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceService, policy.ActionViewAny, nil); !d.Allowed {
		return nil, 0, apperror.Denied(d.Reason)
	}
	return s.services.List(ctx, activeOnly, limit, offset)
}

// Invoice operations.

// prepare recomputes line amounts and invoice totals from the inputs, so
// the stored figures can never disagree with the lines.
func prepare(inv *Invoice) error {
	if inv.PatientID == uuid.Nil {
		return apperror.Validation("patient_id is required")
	}
	if len(inv.Items) == 0 {
		return apperror.Validation("an invoice needs at least one line")
	}
	var subtotal int64
	for i := range inv.Items {
		it := &inv.Items[i]
		if it.Description == "" {
			return apperror.Validation("every line needs a description")
		}
		if it.Quantity <= 0 {
			return apperror.Validation("quantity must be positive")
		}
		if it.UnitPrice < 0 {
			return apperror.Validation("unit_price must not be negative")
		}
		it.Amount = int64(it.Quantity) * it.UnitPrice
		subtotal += it.Amount
	}
	if inv.Discount < 0 || inv.Tax < 0 {
		return apperror.Validation("discount and tax must not be negative")
	}
	if inv.Discount > subtotal {
		return apperror.Validation("discount exceeds subtotal")
	}
	inv.Subtotal = subtotal
	inv.Total = subtotal - inv.Discount + inv.Tax
	return nil
}

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionCreate, nil); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	if err := prepare(inv); err != nil {
		return err
	}
	return s.invoices.Create(ctx, inv)
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionViewAny, nil); !d.Allowed {
		return nil, 0, apperror.Denied(d.Reason)
	}
	return s.invoices.List(ctx, f, limit, offset)
}

func (s *Service) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	existing, err := s.invoices.GetByID(ctx, inv.ID)
	if err != nil {
		return err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Invoice{Status: string(existing.Status)}
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionUpdate, attrs); !d.Allowed {
		return apperror.Denied(d.Reason)
	}
	inv.PatientID = existing.PatientID
	inv.QueueEntryID = existing.QueueEntryID
	if err := prepare(inv); err != nil {
		return err
	}
	return s.invoices.Update(ctx, inv)
}

func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	existing, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Invoice{Status: string(existing.Status)}
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionCancel, attrs); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.invoices.Cancel(ctx, id)
}

func (s *Service) AddPayment(ctx context.Context, p *Payment) (*Invoice, error) {
	existing, err := s.invoices.GetByID(ctx, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	actor := auth.MustActor(ctx)
	attrs := policy.Invoice{Status: string(existing.Status)}
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionAddPayment, attrs); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	if p.Amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}
	if p.Method == "" {
		return nil, apperror.Validation("method is required")
	}
	p.ReceivedBy = actor.ID
	return s.invoices.AddPayment(ctx, p)
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	actor := auth.MustActor(ctx)
	if d := policy.Authorize(actor, policy.ResourceInvoice, policy.ActionView, nil); !d.Allowed {
		return nil, apperror.Denied(d.Reason)
	}
	return s.invoices.ListPayments(ctx, invoiceID)
}
