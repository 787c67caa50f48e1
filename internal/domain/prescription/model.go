package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is the drug order for one consultation, one-to-one with a
// medical record. Dispensing is one-way: once DispensedAt is set the
// prescription and its items are frozen.
type Prescription struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	MedicalRecordID uuid.UUID  `db:"medical_record_id" json:"medical_record_id"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	Items           []Item     `db:"-" json:"items"`
	DispensedAt     *time.Time `db:"dispensed_at" json:"dispensed_at,omitempty"`
	DispensedBy     *uuid.UUID `db:"dispensed_by" json:"dispensed_by,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Dispensed reports whether the prescription has been handed out.
func (p *Prescription) Dispensed() bool { return p.DispensedAt != nil }

// Item is one drug line on a prescription, ordered by Position.
type Item struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	DrugName       string    `db:"drug_name" json:"drug_name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      string    `db:"frequency" json:"frequency"`
	Duration       string    `db:"duration" json:"duration"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	Position       int       `db:"position" json:"position"`
}
