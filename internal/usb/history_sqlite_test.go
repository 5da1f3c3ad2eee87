package usb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/usbflow-core/internal/infrastructure/database"
	_ "github.com/nerrad567/usbflow-core/migrations" // register embedded schema
)

func openHistoryDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "usbflow.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return db
}

func TestSQLiteHistoryRecordAndRecent(t *testing.T) {
	db := openHistoryDB(t)
	repo := NewSQLiteHistoryRepository(db.DB)
	ctx := context.Background()

	records := []MutationRecord{
		{KeyPath: `USB\VID_1\a\Device Parameters`, Action: ActionSet, Disable: true, Outcome: OutcomeRecordSuccess},
		{KeyPath: "*", Action: ActionDisableAll, Disable: true, Outcome: OutcomeRecordNeedsElevation},
		{KeyPath: "*", Action: ActionElevatedDisableAll, Disable: true, Outcome: OutcomeRecordSuccess, Token: "tok-1", Detail: "All devices updated"},
	}
	for _, rec := range records {
		if err := repo.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%+v): %v", rec, err)
		}
	}

	recent, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d records, want 3", len(recent))
	}

	// Newest first.
	if recent[0].Action != ActionElevatedDisableAll || recent[0].Token != "tok-1" {
		t.Errorf("newest record = %+v", recent[0])
	}
	if !recent[0].Disable {
		t.Error("disable flag lost in round trip")
	}
	if recent[0].CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
	if recent[2].Action != ActionSet {
		t.Errorf("oldest record action = %q, want set", recent[2].Action)
	}
}

func TestSQLiteHistoryValidation(t *testing.T) {
	db := openHistoryDB(t)
	repo := NewSQLiteHistoryRepository(db.DB)
	ctx := context.Background()

	if err := repo.Record(ctx, MutationRecord{Action: ActionSet, Outcome: OutcomeRecordSuccess}); err == nil {
		t.Error("expected error for missing key path")
	}
	if err := repo.Record(ctx, MutationRecord{KeyPath: "x", Outcome: OutcomeRecordSuccess}); err == nil {
		t.Error("expected error for missing action")
	}
	if err := repo.Record(ctx, MutationRecord{KeyPath: "x", Action: ActionSet}); err == nil {
		t.Error("expected error for missing outcome")
	}
	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("expected error for non-positive retention")
	}
}

func TestSQLiteHistoryRecentLimit(t *testing.T) {
	db := openHistoryDB(t)
	repo := NewSQLiteHistoryRepository(db.DB)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := MutationRecord{KeyPath: "x", Action: ActionSet, Outcome: OutcomeRecordSuccess}
		if err := repo.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("got %d records, want 2", len(recent))
	}
}

func TestSQLiteHistoryPrune(t *testing.T) {
	db := openHistoryDB(t)
	repo := NewSQLiteHistoryRepository(db.DB)
	ctx := context.Background()

	if err := repo.Record(ctx, MutationRecord{KeyPath: "x", Action: ActionSet, Outcome: OutcomeRecordSuccess}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Nothing is older than an hour yet.
	deleted, err := repo.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}
