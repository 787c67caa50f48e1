package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status is a queue entry's position in the visit workflow.
type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusVitals         Status = "vitals"
	StatusInConsultation Status = "in_consultation"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusVitals, StatusInConsultation, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the entry still occupies its patient's slot for
// the day. Completed and cancelled entries do not.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusVitals || s == StatusInConsultation
}

// transitions is the only legal edge set. Every status change, including
// the generic updateStatus operation, must follow one of these edges.
var transitions = map[Status][]Status{
	StatusWaiting:        {StatusVitals, StatusCancelled},
	StatusVitals:         {StatusInConsultation, StatusCancelled},
	StatusInConsultation: {StatusCompleted},
}

// CanTransition reports whether from→to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool { return p == PriorityNormal || p == PriorityUrgent }

// Entry is one patient's place in a doctor's queue for a visit date.
// QueueNumber is assigned once at creation and never changes.
type Entry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	VisitDate   time.Time  `db:"visit_date" json:"visit_date"`
	QueueNumber int        `db:"queue_number" json:"queue_number"`
	Status      Status     `db:"status" json:"status"`
	Priority    Priority   `db:"priority" json:"priority"`
	Complaint   *string    `db:"complaint" json:"complaint,omitempty"`
	CalledAt    *time.Time `db:"called_at" json:"called_at,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// VitalSign is the one-to-one triage measurement for a queue entry.
type VitalSign struct {
	ID            uuid.UUID `db:"id" json:"id"`
	QueueEntryID  uuid.UUID `db:"queue_entry_id" json:"queue_entry_id"`
	SystolicBP    *int      `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP   *int      `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	HeartRate     *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	RespRate      *int      `db:"resp_rate" json:"resp_rate,omitempty"`
	TemperatureC  *float64  `db:"temperature_c" json:"temperature_c,omitempty"`
	WeightKg      *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm      *float64  `db:"height_cm" json:"height_cm,omitempty"`
	O2Saturation  *int      `db:"o2_saturation" json:"o2_saturation,omitempty"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	RecordedBy    uuid.UUID `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
