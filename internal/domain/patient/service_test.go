package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/policy"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.MRN = "MRN-" + strings.ToUpper(p.ID.String()[:8])
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperror.NotFound("patient")
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return apperror.NotFound("patient")
	}
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, nameFilter string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if nameFilter == "" || strings.Contains(strings.ToLower(p.FullName), strings.ToLower(nameFilter)) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func ctxAs(role policy.Role) context.Context {
	return auth.WithActor(context.Background(), policy.Actor{ID: uuid.New(), Role: role})
}

func TestCreatePatient(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{FullName: "Budi Santoso"}
	if err := svc.Create(ctxAs(policy.RoleReceptionist), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if !strings.HasPrefix(p.MRN, "MRN-") {
		t.Errorf("expected MRN to be generated, got %q", p.MRN)
	}
}

func TestCreatePatientValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	err := svc.Create(ctxAs(policy.RoleAdmin), &Patient{})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("expected validation error for missing name, got %v", err)
	}

	sex := "other"
	err = svc.Create(ctxAs(policy.RoleAdmin), &Patient{FullName: "Budi", Sex: &sex})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("expected validation error for bad sex, got %v", err)
	}
}

func TestCreatePatientDeniedForDoctor(t *testing.T) {
	svc := NewService(newMockRepo())

	err := svc.Create(ctxAs(policy.RoleDoctor), &Patient{FullName: "Budi"})
	if apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied, got %v", err)
	}
}

func TestDeletePatientAdminOnly(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	p := &Patient{FullName: "Siti Aminah"}
	if err := svc.Create(ctxAs(policy.RoleAdmin), p); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, role := range []policy.Role{policy.RoleDoctor, policy.RoleReceptionist} {
		if err := svc.Delete(ctxAs(role), p.ID); apperror.KindOf(err) != apperror.KindDenied {
			t.Errorf("role %s: expected denied, got %v", role, err)
		}
	}
	if err := svc.Delete(ctxAs(policy.RoleAdmin), p.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.Get(ctxAs(policy.RoleAdmin), p.ID); !apperror.IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestUpdatePatientPreservesMRN(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	p := &Patient{FullName: "Siti Aminah"}
	if err := svc.Create(ctxAs(policy.RoleReceptionist), p); err != nil {
		t.Fatalf("create: %v", err)
	}
	orig := p.MRN

	upd := &Patient{ID: p.ID, FullName: "Siti Rahayu", MRN: "MRN-FORGED"}
	if err := svc.Update(ctxAs(policy.RoleReceptionist), upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.MRN != orig {
		t.Errorf("expected MRN %q preserved, got %q", orig, upd.MRN)
	}
}

func TestListPatientsFilter(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("Budi %d", i)
		if err := svc.Create(ctxAs(policy.RoleAdmin), &Patient{FullName: name}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := svc.Create(ctxAs(policy.RoleAdmin), &Patient{FullName: "Siti"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, total, err := svc.List(ctxAs(policy.RoleDoctor), "budi", 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("expected 3 matches, got total=%d len=%d", total, len(items))
	}
}

func TestUnauthenticatedContextDenied(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Get(context.Background(), uuid.New())
	if apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied for missing actor, got %v", err)
	}
}
