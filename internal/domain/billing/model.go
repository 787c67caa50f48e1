package billing

import (
	"time"

	"github.com/google/uuid"
)

// All money amounts are integer rupiah; there are no fractional units.

// ServiceItem is a billable service in the clinic's catalog.
type ServiceItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InvoiceStatus is derived from paid_amount against total and is never set
// directly, except for the explicit cancel operation.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "pending"
	StatusPartial   InvoiceStatus = "partial"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

// DeriveStatus maps a paid amount onto the invoice status ladder.
func DeriveStatus(paid, total int64) InvoiceStatus {
	switch {
	case paid <= 0:
		return StatusPending
	case paid < total:
		return StatusPartial
	default:
		return StatusPaid
	}
}

type Invoice struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	PatientID    uuid.UUID     `db:"patient_id" json:"patient_id"`
	QueueEntryID *uuid.UUID    `db:"queue_entry_id" json:"queue_entry_id,omitempty"`
	Items        []InvoiceItem `db:"-" json:"items"`
	Subtotal     int64         `db:"subtotal" json:"subtotal"`
	Discount     int64         `db:"discount" json:"discount"`
	Tax          int64         `db:"tax" json:"tax"`
	Total        int64         `db:"total" json:"total"`
	PaidAmount   int64         `db:"paid_amount" json:"paid_amount"`
	Status       InvoiceStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

type InvoiceItem struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	InvoiceID   uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	ServiceID   *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	Description string     `db:"description" json:"description"`
	Quantity    int        `db:"quantity" json:"quantity"`
	UnitPrice   int64      `db:"unit_price" json:"unit_price"`
	Amount      int64      `db:"amount" json:"amount"`
}

// Payment is an append-only entry against an invoice.
type Payment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	InvoiceID  uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount     int64     `db:"amount" json:"amount"`
	Method     string    `db:"method" json:"method"`
	Reference  *string   `db:"reference" json:"reference,omitempty"`
	ReceivedBy uuid.UUID `db:"received_by" json:"received_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
