// Package policy implements the authorization rules for the clinic API.
// Every mutating or sensitive operation goes through Authorize; handlers and
// services never perform their own role checks.
package policy

import (
	"github.com/google/uuid"
)

// Role is the closed set of staff roles.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleReceptionist Role = "receptionist"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleReceptionist:
		return true
	}
	return false
}

// Actor is the authenticated party issuing a request.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Action names an operation on a resource.
type Action string

const (
	ActionViewAny      Action = "viewAny"
	ActionView         Action = "view"
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionCall         Action = "call"
	ActionStart        Action = "start"
	ActionComplete     Action = "complete"
	ActionUpdateStatus Action = "updateStatus"
	ActionCancel       Action = "cancel"
	ActionAddAddendum  Action = "addAddendum"
	ActionDispense     Action = "dispense"
	ActionAddPayment   Action = "addPayment"
)

// ResourceKind identifies the resource type a rule applies to.
type ResourceKind string

const (
	ResourcePatient       ResourceKind = "patient"
	ResourceSchedule      ResourceKind = "schedule"
	ResourceQueue         ResourceKind = "queue"
	ResourceVitalSign     ResourceKind = "vital_sign"
	ResourceMedicalRecord ResourceKind = "medical_record"
	ResourceAddendum      ResourceKind = "addendum"
	ResourcePrescription  ResourceKind = "prescription"
	ResourceInvoice       ResourceKind = "invoice"
	ResourceService       ResourceKind = "service"
)

// Attribute views of domain resources. Rules only see the fields they gate
// on, so domain packages can depend on policy without cycles.

// Schedule carries the owning doctor of a schedule row.
type Schedule struct {
	DoctorID uuid.UUID
}

// Queue carries the doctor a queue entry is assigned to. A Nil DoctorID
// means the entry is unassigned and every ownership clause evaluates false.
type Queue struct {
	DoctorID uuid.UUID
}

// MedicalRecord carries the lock flag of a medical record.
type MedicalRecord struct {
	Locked bool
}

// Addendum carries the authoring doctor of an addendum.
type Addendum struct {
	DoctorID uuid.UUID
}

// Prescription carries the dispense flag of a prescription.
type Prescription struct {
	Dispensed bool
}

// Invoice status values mirrored here so rules can gate on them.
const (
	InvoicePending   = "pending"
	InvoicePartial   = "partial"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Invoice carries the status of an invoice.
type Invoice struct {
	Status string
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

type ruleKey struct {
	Resource ResourceKind
	Action   Action
}

// rule evaluates one (resource, action) pair. attrs is the attribute view
// for the resource, or nil for rules that gate on role alone.
type rule func(a Actor, attrs any) Decision

func roleIn(roles ...Role) rule {
	return func(a Actor, _ any) Decision {
		for _, r := range roles {
			if a.Role == r {
				return allow("role " + string(r))
			}
		}
		return deny("role " + string(a.Role) + " not permitted")
	}
}

func anyAuthenticated() rule {
	return func(a Actor, _ any) Decision {
		if !a.Role.Valid() {
			return deny("unknown role")
		}
		return allow("any role")
	}
}

// adminOrOwner allows admins, and the given role when the actor owns the
// resource. owner extracts the owning doctor id from the attribute view; a
// failed extraction or a Nil owner denies.
func adminOrOwner(role Role, owner func(attrs any) (uuid.UUID, bool)) rule {
	return func(a Actor, attrs any) Decision {
		if a.Role == RoleAdmin {
			return allow("role admin")
		}
		if a.Role != role {
			return deny("role " + string(a.Role) + " not permitted")
		}
		id, ok := owner(attrs)
		if !ok || id == uuid.Nil || id != a.ID {
			return deny("not the owner")
		}
		return allow("owner")
	}
}

func scheduleOwner(attrs any) (uuid.UUID, bool) {
	s, ok := attrs.(Schedule)
	return s.DoctorID, ok
}

func queueOwner(attrs any) (uuid.UUID, bool) {
	q, ok := attrs.(Queue)
	return q.DoctorID, ok
}

func addendumOwner(attrs any) (uuid.UUID, bool) {
	ad, ok := attrs.(Addendum)
	return ad.DoctorID, ok
}

func recordUnlocked(next rule) rule {
	return func(a Actor, attrs any) Decision {
		rec, ok := attrs.(MedicalRecord)
		if !ok {
			return deny("missing record attributes")
		}
		if rec.Locked {
			return deny("record is locked")
		}
		return next(a, attrs)
	}
}

func prescriptionUndispensed(next rule) rule {
	return func(a Actor, attrs any) Decision {
		p, ok := attrs.(Prescription)
		if !ok {
			return deny("missing prescription attributes")
		}
		if p.Dispensed {
			return deny("prescription already dispensed")
		}
		return next(a, attrs)
	}
}

func invoiceIn(statuses ...string) func(rule) rule {
	return func(next rule) rule {
		return func(a Actor, attrs any) Decision {
			inv, ok := attrs.(Invoice)
			if !ok {
				return deny("missing invoice attributes")
			}
			for _, s := range statuses {
				if inv.Status == s {
					return next(a, attrs)
				}
			}
			return deny("invoice is " + inv.Status)
		}
	}
}

var allStaff = roleIn(RoleAdmin, RoleDoctor, RoleReceptionist)
var frontDesk = roleIn(RoleAdmin, RoleReceptionist)
var clinicians = roleIn(RoleAdmin, RoleDoctor)

// rules is the full authorization table. Anything not listed here is denied.
var rules = map[ruleKey]rule{
	{ResourcePatient, ActionViewAny}: allStaff,
	{ResourcePatient, ActionView}:    allStaff,
	{ResourcePatient, ActionCreate}:  frontDesk,
	{ResourcePatient, ActionUpdate}:  frontDesk,
	{ResourcePatient, ActionDelete}:  roleIn(RoleAdmin),

	{ResourceSchedule, ActionViewAny}: allStaff,
	{ResourceSchedule, ActionView}:    allStaff,
	{ResourceSchedule, ActionCreate}:  adminOrOwner(RoleDoctor, scheduleOwner),
	{ResourceSchedule, ActionUpdate}:  adminOrOwner(RoleDoctor, scheduleOwner),
	{ResourceSchedule, ActionDelete}:  adminOrOwner(RoleDoctor, scheduleOwner),

	{ResourceQueue, ActionViewAny}:      allStaff,
	{ResourceQueue, ActionView}:         allStaff,
	{ResourceQueue, ActionCreate}:       frontDesk,
	{ResourceQueue, ActionCall}:         adminOrOwner(RoleDoctor, queueOwner),
	{ResourceQueue, ActionStart}:        adminOrOwner(RoleDoctor, queueOwner),
	{ResourceQueue, ActionComplete}:     adminOrOwner(RoleDoctor, queueOwner),
	{ResourceQueue, ActionUpdateStatus}: frontDesk,
	{ResourceQueue, ActionCancel}:       frontDesk,

	{ResourceVitalSign, ActionViewAny}: allStaff,
	{ResourceVitalSign, ActionView}:    allStaff,
	{ResourceVitalSign, ActionCreate}:  frontDesk,
	{ResourceVitalSign, ActionUpdate}:  frontDesk,
	{ResourceVitalSign, ActionDelete}:  frontDesk,

	{ResourceMedicalRecord, ActionViewAny}:     clinicians,
	{ResourceMedicalRecord, ActionView}:        clinicians,
	{ResourceMedicalRecord, ActionCreate}:      clinicians,
	{ResourceMedicalRecord, ActionUpdate}:      recordUnlocked(clinicians),
	{ResourceMedicalRecord, ActionAddAddendum}: clinicians,

	{ResourceAddendum, ActionUpdate}: adminOrOwner(RoleDoctor, addendumOwner),
	{ResourceAddendum, ActionDelete}: adminOrOwner(RoleDoctor, addendumOwner),

	{ResourcePrescription, ActionViewAny}:  anyAuthenticated(),
	{ResourcePrescription, ActionView}:     anyAuthenticated(),
	{ResourcePrescription, ActionCreate}:   clinicians,
	{ResourcePrescription, ActionUpdate}:   prescriptionUndispensed(clinicians),
	{ResourcePrescription, ActionDelete}:   prescriptionUndispensed(clinicians),
	{ResourcePrescription, ActionDispense}: prescriptionUndispensed(frontDesk),

	{ResourceInvoice, ActionViewAny}:    frontDesk,
	{ResourceInvoice, ActionView}:       frontDesk,
	{ResourceInvoice, ActionCreate}:     frontDesk,
	{ResourceInvoice, ActionUpdate}:     invoiceIn(InvoicePending)(frontDesk),
	{ResourceInvoice, ActionCancel}:     invoiceIn(InvoicePending)(frontDesk),
	{ResourceInvoice, ActionAddPayment}: invoiceIn(InvoicePending, InvoicePartial)(frontDesk),

	{ResourceService, ActionViewAny}: anyAuthenticated(),
	{ResourceService, ActionView}:    anyAuthenticated(),
	{ResourceService, ActionCreate}:  roleIn(RoleAdmin),
	{ResourceService, ActionUpdate}:  roleIn(RoleAdmin),
	{ResourceService, ActionDelete}:  roleIn(RoleAdmin),
}

// Authorize evaluates the rule for (resource, action) against the actor and
// the resource's attribute view. Unknown pairs and unknown roles deny.
func Authorize(a Actor, resource ResourceKind, action Action, attrs any) Decision {
	if !a.Role.Valid() {
		return deny("unknown role " + string(a.Role))
	}
	r, ok := rules[ruleKey{resource, action}]
	if !ok {
		return deny("no rule for " + string(resource) + "." + string(action))
	}
	return r(a, attrs)
}
