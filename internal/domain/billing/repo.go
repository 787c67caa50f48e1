package billing

import (
	"context"

	"github.com/google/uuid"
)

type ServiceRepository interface {
	Create(ctx context.Context, s *ServiceItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceItem, error)
	Update(ctx context.Context, s *ServiceItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*ServiceItem, int, error)
}

type InvoiceFilter struct {
	PatientID *uuid.UUID
	Status    *InvoiceStatus
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// Update replaces the item lines and totals of a pending invoice.
	// Rows past pending are never matched.
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error)
	// Cancel moves a pending invoice to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// AddPayment appends the payment and re-derives the invoice status in
	// one transaction, locking the invoice row for the duration. Overpaying
	// or paying a settled invoice fails inside the transaction.
	AddPayment(ctx context.Context, p *Payment) (*Invoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}
