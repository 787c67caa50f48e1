package queue

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
	entries map[uuid.UUID]*Entry
}

func newMockRepo() *mockRepo {
	return &mockRepo{entries: make(map[uuid.UUID]*Entry)}
}

func (m *mockRepo) Create(_ context.Context, e *Entry) error {
	e.ID = uuid.New()
	next := 1
	for _, ex := range m.entries {
		if ex.DoctorID == e.DoctorID && ex.VisitDate.Equal(e.VisitDate) && ex.QueueNumber >= next {
			next = ex.QueueNumber + 1
		}
	}
	e.QueueNumber = next
	m.entries[e.ID] = e
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, apperror.NotFound("queue entry")
	}
	cp := *e
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	var out []*Entry
	for _, e := range m.entries {
		if f.DoctorID != nil && e.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) HasActiveEntry(_ context.Context, patientID uuid.UUID, visitDate time.Time) (bool, error) {
	for _, e := range m.entries {
		if e.PatientID == patientID && e.VisitDate.Equal(visitDate) && e.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, stamp *time.Time) (*Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, apperror.NotFound("queue entry")
	}
	if e.Status != from {
		return nil, apperror.Conflict("queue entry is %s, not %s", e.Status, from)
	}
	e.Status = to
	switch to {
	case StatusVitals:
		e.CalledAt = stamp
	case StatusInConsultation:
		e.StartedAt = stamp
	case StatusCompleted:
		e.CompletedAt = stamp
	}
	cp := *e
	return &cp, nil
}

type mockVitalRepo struct {
	byEntry map[uuid.UUID]*VitalSign
}

func newMockVitalRepo() *mockVitalRepo {
	return &mockVitalRepo{byEntry: make(map[uuid.UUID]*VitalSign)}
}

func (m *mockVitalRepo) Create(_ context.Context, v *VitalSign) error {
	if _, ok := m.byEntry[v.QueueEntryID]; ok {
		return apperror.Conflict("vital signs already recorded for this entry")
	}
	v.ID = uuid.New()
	m.byEntry[v.QueueEntryID] = v
	return nil
}

func (m *mockVitalRepo) GetByQueueEntry(_ context.Context, queueEntryID uuid.UUID) (*VitalSign, error) {
	v, ok := m.byEntry[queueEntryID]
	if !ok {
		return nil, apperror.NotFound("vital signs")
	}
	cp := *v
	return &cp, nil
}

func (m *mockVitalRepo) Update(_ context.Context, v *VitalSign) error {
	if _, ok := m.byEntry[v.QueueEntryID]; !ok {
		return apperror.NotFound("vital signs")
	}
	m.byEntry[v.QueueEntryID] = v
	return nil
}

func (m *mockVitalRepo) Delete(_ context.Context, id uuid.UUID) error {
	for k, v := range m.byEntry {
		if v.ID == id {
			delete(m.byEntry, k)
			return nil
		}
	}
	return apperror.NotFound("vital signs")
}

func ctxAs(id uuid.UUID, role policy.Role) context.Context {
	return auth.WithActor(context.Background(), policy.Actor{ID: id, Role: role})
}

var visitDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *clock.Fixed) {
	repo := newMockRepo()
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewService(repo, newMockVitalRepo(), clk), repo, clk
}

func checkIn(t *testing.T, svc *Service, doctorID uuid.UUID) *Entry {
	t.Helper()
	e := &Entry{PatientID: uuid.New(), DoctorID: doctorID, VisitDate: visitDate}
	if err := svc.Create(ctxAs(uuid.New(), policy.RoleReceptionist), e); err != nil {
		t.Fatalf("check in: %v", err)
	}
	return e
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()

	for want := 1; want <= 3; want++ {
		e := checkIn(t, svc, doctorID)
		if e.QueueNumber != want {
			t.Errorf("expected queue number %d, got %d", want, e.QueueNumber)
		}
		if e.Status != StatusWaiting {
			t.Errorf("expected new entry waiting, got %s", e.Status)
		}
	}

	// A different doctor's queue numbers start over.
	other := checkIn(t, svc, uuid.New())
	if other.QueueNumber != 1 {
		t.Errorf("expected queue number 1 for other doctor, got %d", other.QueueNumber)
	}
}

func TestCreateRejectsSecondActiveEntry(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()
	patientID := uuid.New()
	ctx := ctxAs(uuid.New(), policy.RoleReceptionist)

	first := &Entry{PatientID: patientID, DoctorID: doctorID, VisitDate: visitDate}
	if err := svc.Create(ctx, first); err != nil {
		t.Fatalf("first create: %v", err)
	}

	dup := &Entry{PatientID: patientID, DoctorID: doctorID, VisitDate: visitDate}
	if err := svc.Create(ctx, dup); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("expected conflict for second active entry, got %v", err)
	}
}

func TestCreateAfterCancellationAllowed(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()
	patientID := uuid.New()
	ctx := ctxAs(uuid.New(), policy.RoleReceptionist)

	first := &Entry{PatientID: patientID, DoctorID: doctorID, VisitDate: visitDate}
	if err := svc.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	again := &Entry{PatientID: patientID, DoctorID: doctorID, VisitDate: visitDate}
	if err := svc.Create(ctx, again); err != nil {
		t.Errorf("expected re-entry after cancellation, got %v", err)
	}
	if again.QueueNumber != 2 {
		t.Errorf("expected fresh queue number 2, got %d", again.QueueNumber)
	}
}

func TestCreateDeniedForDoctor(t *testing.T) {
	svc, _, _ := newTestService()

	e := &Entry{PatientID: uuid.New(), DoctorID: uuid.New(), VisitDate: visitDate}
	err := svc.Create(ctxAs(uuid.New(), policy.RoleDoctor), e)
	if apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied, got %v", err)
	}
}

func TestFullVisitLifecycle(t *testing.T) {
	svc, _, clk := newTestService()
	doctorID := uuid.New()
	doctorCtx := ctxAs(doctorID, policy.RoleDoctor)

	e := checkIn(t, svc, doctorID)

	called, err := svc.Call(doctorCtx, e.ID)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if called.Status != StatusVitals {
		t.Errorf("expected vitals after call, got %s", called.Status)
	}
	if called.CalledAt == nil || !called.CalledAt.Equal(clk.Now()) {
		t.Errorf("expected called_at stamped at %v, got %v", clk.Now(), called.CalledAt)
	}

	clk.Advance(5 * time.Minute)
	started, err := svc.Start(doctorCtx, e.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInConsultation || started.StartedAt == nil {
		t.Errorf("expected in_consultation with started_at, got %s %v", started.Status, started.StartedAt)
	}

	clk.Advance(20 * time.Minute)
	done, err := svc.Complete(doctorCtx, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Errorf("expected completed with completed_at, got %s %v", done.Status, done.CompletedAt)
	}
	if done.QueueNumber != e.QueueNumber {
		t.Errorf("queue number changed from %d to %d", e.QueueNumber, done.QueueNumber)
	}
}

func TestIllegalTransitionsConflict(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()
	doctorCtx := ctxAs(doctorID, policy.RoleDoctor)
	adminCtx := ctxAs(uuid.New(), policy.RoleAdmin)

	e := checkIn(t, svc, doctorID)

	// waiting cannot start or complete.
	if _, err := svc.Start(doctorCtx, e.ID); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("start from waiting: expected conflict, got %v", err)
	}
	if _, err := svc.Complete(doctorCtx, e.ID); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("complete from waiting: expected conflict, got %v", err)
	}

	if _, err := svc.Call(doctorCtx, e.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, err := svc.Start(doctorCtx, e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	// in_consultation cannot be cancelled, not even by admin.
	if _, err := svc.Cancel(adminCtx, e.ID); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("cancel from in_consultation: expected conflict, got %v", err)
	}

	if _, err := svc.Complete(doctorCtx, e.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// completed is terminal.
	if _, err := svc.SetStatus(adminCtx, e.ID, StatusWaiting); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("reopen completed: expected conflict, got %v", err)
	}
}

func TestCallOwnershipEnforced(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()

	e := checkIn(t, svc, doctorID)

	if _, err := svc.Call(ctxAs(uuid.New(), policy.RoleDoctor), e.ID); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("other doctor call: expected denied, got %v", err)
	}
	if _, err := svc.Call(ctxAs(uuid.New(), policy.RoleReceptionist), e.ID); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("receptionist call: expected denied, got %v", err)
	}
	if _, err := svc.Call(ctxAs(uuid.New(), policy.RoleAdmin), e.ID); err != nil {
		t.Errorf("admin call: %v", err)
	}
}

func TestDenialBeatsStateConflict(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()

	e := checkIn(t, svc, doctorID)

	// Entry is waiting, so Complete would be a state conflict, but the
	// caller is not allowed at all; denial must win.
	_, err := svc.Complete(ctxAs(uuid.New(), policy.RoleReceptionist), e.ID)
	if apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied before state check, got %v", err)
	}
}

func TestSetStatusBoundToEdgeTable(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()
	ctx := ctxAs(uuid.New(), policy.RoleReceptionist)

	e := checkIn(t, svc, doctorID)

	if _, err := svc.SetStatus(ctx, e.ID, StatusCompleted); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("waiting -> completed via updateStatus: expected conflict, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, e.ID, Status("archived")); apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("unknown status: expected validation error, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, e.ID, StatusVitals); err != nil {
		t.Errorf("waiting -> vitals via updateStatus: %v", err)
	}
}

func TestRecordVitalsOnlyDuringVitals(t *testing.T) {
	svc, _, _ := newTestService()
	doctorID := uuid.New()
	recCtx := ctxAs(uuid.New(), policy.RoleReceptionist)

	e := checkIn(t, svc, doctorID)

	hr := 72
	v := &VitalSign{QueueEntryID: e.ID, HeartRate: &hr}
	if err := svc.RecordVitals(recCtx, v); apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("vitals while waiting: expected conflict, got %v", err)
	}

	if _, err := svc.Call(ctxAs(doctorID, policy.RoleDoctor), e.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := svc.RecordVitals(recCtx, v); err != nil {
		t.Fatalf("record vitals: %v", err)
	}
	if v.RecordedBy == uuid.Nil {
		t.Error("expected recorded_by stamped from actor")
	}

	got, err := svc.GetVitals(ctxAs(doctorID, policy.RoleDoctor), e.ID)
	if err != nil {
		t.Fatalf("get vitals: %v", err)
	}
	if got.HeartRate == nil || *got.HeartRate != 72 {
		t.Errorf("unexpected vitals %+v", got)
	}
}

func TestRecordVitalsDeniedForDoctor(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := uuid.New()

	e := checkIn(t, svc, doctorID)
	repo.entries[e.ID].Status = StatusVitals

	v := &VitalSign{QueueEntryID: e.ID}
	if err := svc.RecordVitals(ctxAs(doctorID, policy.RoleDoctor), v); apperror.KindOf(err) != apperror.KindDenied {
		t.Errorf("expected denied, got %v", err)
	}
}
