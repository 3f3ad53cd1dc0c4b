package state

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to open state database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLatestRunEmpty(t *testing.T) {
	db := openTestDB(t)

	run, err := db.LatestRun()
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if run != nil {
		t.Errorf("Expected nil run for empty ledger, got %+v", run)
	}
}

func TestStartAndFinishRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartRun("year", 1672531200, 1704067200)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero run id")
	}

	if err := db.FinishRun(id, 42, "activities_2023.csv", 3); err != nil {
		t.Fatalf("Failed to finish run: %v", err)
	}

	run, err := db.LatestRun()
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if run == nil {
		t.Fatal("Expected a run, got nil")
	}

	if run.ID != id {
		t.Errorf("Expected run id %d, got %d", id, run.ID)
	}
	if run.WindowKind != "year" {
		t.Errorf("Expected window kind 'year', got %q", run.WindowKind)
	}
	if run.AfterTS != 1672531200 || run.BeforeTS != 1704067200 {
		t.Errorf("Expected window [1672531200, 1704067200), got [%d, %d)", run.AfterTS, run.BeforeTS)
	}
	if run.ActivitiesFetched == nil || *run.ActivitiesFetched != 42 {
		t.Errorf("Expected 42 activities fetched, got %v", run.ActivitiesFetched)
	}
	if run.CSVFile == nil || *run.CSVFile != "activities_2023.csv" {
		t.Errorf("Expected csv file 'activities_2023.csv', got %v", run.CSVFile)
	}
	if run.FilesMerged == nil || *run.FilesMerged != 3 {
		t.Errorf("Expected 3 files merged, got %v", run.FilesMerged)
	}
	if run.Error != nil {
		t.Errorf("Expected no error on a successful run, got %v", *run.Error)
	}
	if run.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}
}

func TestFailRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartRun("last_7_days", 100, 200)
	if err != nil {
		t.Fatalf("Failed to start run: %v", err)
	}

	if err := db.FailRun(id, "token exchange failed"); err != nil {
		t.Fatalf("Failed to fail run: %v", err)
	}

	run, err := db.LatestRun()
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if run == nil {
		t.Fatal("Expected a run, got nil")
	}

	if run.Error == nil || *run.Error != "token exchange failed" {
		t.Errorf("Expected recorded error, got %v", run.Error)
	}
	if run.ActivitiesFetched != nil {
		t.Errorf("Expected no fetch count on a failed run, got %v", *run.ActivitiesFetched)
	}
}

func TestLatestRunOrdering(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.StartRun("year", 1, 2); err != nil {
		t.Fatalf("Failed to start first run: %v", err)
	}
	second, err := db.StartRun("last_7_days", 3, 4)
	if err != nil {
		t.Fatalf("Failed to start second run: %v", err)
	}

	run, err := db.LatestRun()
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}
	if run == nil || run.ID != second {
		t.Errorf("Expected latest run id %d, got %+v", second, run)
	}
}
