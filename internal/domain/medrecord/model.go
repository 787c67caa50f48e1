package medrecord

import (
	"time"

	"github.com/google/uuid"
)

// Record is the clinical note for one consultation, one-to-one with a
// queue entry. Once IsLocked is set the SOAP fields and diagnoses are
// frozen; only addendums may be appended after that.
type Record struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	QueueEntryID uuid.UUID   `db:"queue_entry_id" json:"queue_entry_id"`
	PatientID    uuid.UUID   `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	Subjective   *string     `db:"subjective" json:"subjective,omitempty"`
	Objective    *string     `db:"objective" json:"objective,omitempty"`
	Assessment   *string     `db:"assessment" json:"assessment,omitempty"`
	Plan         *string     `db:"plan" json:"plan,omitempty"`
	Diagnoses    []Diagnosis `db:"-" json:"diagnoses"`
	IsLocked     bool        `db:"is_locked" json:"is_locked"`
	LockedAt     *time.Time  `db:"locked_at" json:"locked_at,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Diagnosis is an ordered ICD-style entry on a record. Position preserves
// the order diagnoses were entered in; at most one is primary.
type Diagnosis struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecordID    uuid.UUID `db:"record_id" json:"record_id"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	IsPrimary   bool      `db:"is_primary" json:"is_primary"`
	Position    int       `db:"position" json:"position"`
}

// Addendum is an append-only note on a record. Addendums stay editable by
// their authoring doctor (or an admin) even after the record locks.
type Addendum struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RecordID  uuid.UUID `db:"record_id" json:"record_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
