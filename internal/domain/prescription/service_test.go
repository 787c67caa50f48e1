package prescription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/clock"
	"github.com/klinik/klinik/internal/platform/policy"
)

type mockRepo struct {
	prescriptions map[uuid.UUID]*Prescription
}

func newMockRepo() *mockRepo {
	return &mockRepo{prescriptions: make(map[uuid.UUID]*Prescription)}
}

func (m *mockRepo) Create(_ context.Context, p *Prescription) error {
	for _, ex := range m.prescriptions {
		if ex.MedicalRecordID == p.MedicalRecordID {
			return apperror.Conflict("prescription already exists for this record")
		}
	}
	p.ID = uuid.New()
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, apperror.NotFound("prescription")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByMedicalRecord(_ context.Context, recordID uuid.UUID) (*Prescription, error) {
	for _, p := range m.prescriptions {
		if p.MedicalRecordID == recordID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("prescription")
}

func (m *mockRepo) Update(_ context.Context, p *Prescription) error {
	ex, ok := m.prescriptions[p.ID]
	if !ok || ex.Dispensed() {
		return apperror.NotFound("prescription")
	}
	p.DispensedAt = ex.DispensedAt
	p.DispensedBy = ex.DispensedBy
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	ex, ok := m.prescriptions[id]
	if !ok || ex.Dispensed() {
		return apperror.NotFound("prescription")
	}
	delete(m.prescriptions, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, dispensed *bool, limit, offset int) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, p := range m.prescriptions {
		if dispensed != nil && p.Dispensed() != *dispensed {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) MarkDispensed(_ context.Context, id uuid.UUID, at time.Time, by uuid.UUID) (bool, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return false, apperror.NotFound("prescription")
	}
	if p.Dispensed() {
		return false, nil
	}
	p.DispensedAt = &at
	p.DispensedBy = &by
	return true, nil
}

func ctxAs(id uuid.UUID, role policy.Role) context.Context {
	return auth.WithActor(context.Background(), policy.Actor{ID: id, Role: role})
}

func newTestService() (*Service, *mockRepo, *clock.Fixed) {
	repo := newMockRepo()
	clk := clock.NewFixed(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	return NewService(repo, clk), repo, clk
}

func draft() *Prescription {
	return &Prescription{
		MedicalRecordID: uuid.New(),
		Items: []Item{
			{DrugName: "Paracetamol 500mg", Dosage: "500mg", Frequency: "3x daily", Duration: "5 days", Quantity: 15},
		},
	}
}

func TestCreatePrescription(t *testing.T) {
	svc, _, _ := newTestService()

	p := draft()
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), p); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestCreateDeniedForReceptionist(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.Create(ctxAs(uuid.New(), policy.RoleReceptionist), draft())
	if apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied, got %v", err)
	}
}

func TestCreateRequiresItems(t *testing.T) {
	svc, _, _ := newTestService()

	p := &Prescription{MedicalRecordID: uuid.New()}
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), p); apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("expected validation error for empty items, got %v", err)
	}

	p.Items = []Item{{DrugName: "Amoxicillin", Quantity: 0}}
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), p); apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
}

func TestDispenseIsOneWay(t *testing.T) {
	svc, _, clk := newTestService()
	receptionist := uuid.New()
	recCtx := ctxAs(receptionist, policy.RoleReceptionist)

	p := draft()
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Dispense(recCtx, p.ID)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if got.DispensedAt == nil || !got.DispensedAt.Equal(clk.Now()) {
		t.Errorf("expected dispensed_at %v, got %v", clk.Now(), got.DispensedAt)
	}
	if got.DispensedBy == nil || *got.DispensedBy != receptionist {
		t.Errorf("expected dispensed_by stamped")
	}

	// Second dispense is refused, admin included.
	if _, err := svc.Dispense(recCtx, p.ID); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("second dispense: expected denied, got %v", err)
	}
	if _, err := svc.Dispense(ctxAs(uuid.New(), policy.RoleAdmin), p.ID); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("admin second dispense: expected denied, got %v", err)
	}
}

func TestDispenseDeniedForDoctor(t *testing.T) {
	svc, _, _ := newTestService()

	p := draft()
	doctorCtx := ctxAs(uuid.New(), policy.RoleDoctor)
	if err := svc.Create(doctorCtx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Dispense(doctorCtx, p.ID); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied, got %v", err)
	}
}

func TestDispenseRaceLoser(t *testing.T) {
	svc, repo, _ := newTestService()

	p := draft()
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another dispenser wins before this caller's update lands.
	at := time.Now()
	by := uuid.New()
	repo.prescriptions[p.ID].DispensedAt = &at
	repo.prescriptions[p.ID].DispensedBy = &by

	_, err := svc.Dispense(ctxAs(uuid.New(), policy.RoleReceptionist), p.ID)
	if err == nil {
		t.Fatal("expected second dispense to fail")
	}
}

func TestUpdateFrozenAfterDispense(t *testing.T) {
	svc, _, _ := newTestService()
	doctorCtx := ctxAs(uuid.New(), policy.RoleDoctor)

	p := draft()
	if err := svc.Create(doctorCtx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Dispense(ctxAs(uuid.New(), policy.RoleReceptionist), p.ID); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	upd := draft()
	upd.ID = p.ID
	if err := svc.Update(doctorCtx, upd); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("update after dispense: expected denied, got %v", err)
	}
	if err := svc.Delete(doctorCtx, p.ID); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("delete after dispense: expected denied, got %v", err)
	}
}

func TestViewOpenToAllStaff(t *testing.T) {
	svc, _, _ := newTestService()

	p := draft()
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, role := range []policy.Role{policy.RoleAdmin, policy.RoleDoctor, policy.RoleReceptionist} {
		if _, err := svc.Get(ctxAs(uuid.New(), role), p.ID); err != nil {
			t.Errorf("role %s view: %v", role, err)
		}
	}
}
