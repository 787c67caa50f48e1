package medrecord

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/klinik/klinik/internal/platform/clock"
)

func seedRecord(repo *mockRepo, createdAt time.Time) uuid.UUID {
	id := uuid.New()
	repo.records[id] = &Record{ID: id, CreatedAt: createdAt}
	return id
}

func TestSweepLocksOnlyAgedRecords(t *testing.T) {
	repo := newMockRepo()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	old := seedRecord(repo, now.Add(-25*time.Hour))
	boundary := seedRecord(repo, now.Add(-24*time.Hour))
	fresh := seedRecord(repo, now.Add(-1*time.Hour))

	sw := NewSweeper(repo, clk, 24*time.Hour, time.Minute, zerolog.Nop())
	locked, err := sw.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if locked != 1 {
		t.Errorf("expected 1 locked, got %d", locked)
	}
	if !repo.records[old].IsLocked {
		t.Error("expected 25h old record locked")
	}
	// Strictly older than the cutoff; an exactly-24h record waits for the
	// next run.
	if repo.records[boundary].IsLocked {
		t.Error("expected exactly-24h record untouched")
	}
	if repo.records[fresh].IsLocked {
		t.Error("expected 1h old record untouched")
	}

	lockedAt := repo.records[old].LockedAt
	if lockedAt == nil || !lockedAt.Equal(now) {
		t.Errorf("expected locked_at stamped %v, got %v", now, lockedAt)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := newMockRepo()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	id := seedRecord(repo, now.Add(-48*time.Hour))
	sw := NewSweeper(repo, clk, 24*time.Hour, time.Minute, zerolog.Nop())

	if _, err := sw.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstStamp := *repo.records[id].LockedAt

	clk.Advance(time.Hour)
	locked, err := sw.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if locked != 0 {
		t.Errorf("expected second run to lock nothing, locked %d", locked)
	}
	if !repo.records[id].LockedAt.Equal(firstStamp) {
		t.Error("expected locked_at unchanged on repeat sweep")
	}
}

func TestSweepCutoffAdvancesWithClock(t *testing.T) {
	repo := newMockRepo()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)

	id := seedRecord(repo, now.Add(-23*time.Hour))
	sw := NewSweeper(repo, clk, 24*time.Hour, time.Minute, zerolog.Nop())

	if locked, _ := sw.Run(context.Background()); locked != 0 {
		t.Fatalf("expected 23h record untouched, locked %d", locked)
	}

	clk.Advance(2 * time.Hour)
	if locked, _ := sw.Run(context.Background()); locked != 1 {
		t.Errorf("expected record locked once it aged past 24h, locked %d", locked)
	}
	if !repo.records[id].IsLocked {
		t.Error("expected record locked after clock advanced")
	}
}
