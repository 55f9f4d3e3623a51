package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/credaudit/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *AuditDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newReport builds a report for target whose weak accounts are weak.
func newReport(target string, started time.Time, fingerprint string, weak ...string) *model.AuditReport {
	r := model.NewAuditReport(target)
	r.StartedAt = started
	r.IndexFingerprint = fingerprint
	for _, id := range weak {
		r.Results = append(r.Results, model.Result{Identifier: id, Classification: model.ClassWeak, Source: "Summer2024"})
	}
	r.Results = append(r.Results, model.Result{Identifier: "dave", Classification: model.ClassCompliant})
	for _, res := range r.Results {
		r.Counters.Record(res)
	}
	r.Finish()
	return r
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: false})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

// TestSaveAuditReport tests storing and loading reports.
func TestSaveAuditReport(t *testing.T) {
	t.Parallel()

	t.Run("stores a redacted report", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := newReport("corp.ntds", time.Now(), "abc", "alice", "bob")

		id, err := db.SaveAuditReport(t.Context(), report)
		if err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		loaded, err := db.GetAuditReportByID(t.Context(), id)
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if loaded == nil {
			t.Fatal("expected report")
		}
		if loaded.ID != report.ID || loaded.Target != "corp.ntds" {
			t.Errorf("unexpected report: %s %s", loaded.ID, loaded.Target)
		}
		if loaded.Counters.Weak != 2 {
			t.Errorf("expected 2 weak, got %d", loaded.Counters.Weak)
		}
		for _, r := range loaded.Results {
			if r.Source != "" {
				t.Errorf("cleartext stored for %s", r.Identifier)
			}
		}
		if report.Results[0].Source != "Summer2024" {
			t.Error("saving must not modify the report")
		}
	})

	t.Run("stores weak accounts", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := newReport("corp.ntds", time.Now(), "abc", "bob", "alice")
		report.Results[0].Classification = model.ClassWeakWithLinkedDuplicate
		report.Results[0].LinkedIdentifier = "bob-a"

		id, err := db.SaveAuditReport(t.Context(), report)
		if err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		weak, err := db.GetWeakAccounts(t.Context(), id)
		if err != nil {
			t.Fatalf("failed to get weak accounts: %v", err)
		}
		if len(weak) != 2 {
			t.Fatalf("expected 2 weak accounts, got %d", len(weak))
		}
		if weak[0].Identifier != "alice" || weak[1].Identifier != "bob" {
			t.Errorf("expected identifier order, got %+v", weak)
		}
		if weak[1].Classification != model.ClassWeakWithLinkedDuplicate || weak[1].LinkedIdentifier != "bob-a" {
			t.Errorf("unexpected linked account: %+v", weak[1])
		}
	})

	t.Run("unknown ID returns nil", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report, err := db.GetAuditReportByID(t.Context(), 42)
		if err != nil || report != nil {
			t.Errorf("expected nil, nil; got %v, %v", report, err)
		}
	})
}

// TestHistory tests history queries.
func TestHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := newReport("corp.ntds", base, "abc", "alice")
	second := newReport("corp.ntds", base.Add(time.Hour), "abc", "alice", "bob")
	other := newReport("branch.ntds", base, "abc")
	other.ErrorMessage = "dump not found"

	for _, r := range []*model.AuditReport{second, first, other} {
		if _, err := db.SaveAuditReport(t.Context(), r); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
	}

	t.Run("lists targets", func(t *testing.T) {
		t.Parallel()

		targets, err := db.ListAuditedTargets(t.Context())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(targets) != 2 || targets[0] != "branch.ntds" || targets[1] != "corp.ntds" {
			t.Errorf("unexpected targets: %v", targets)
		}
	})

	t.Run("latest is by audit time, not insertion", func(t *testing.T) {
		t.Parallel()

		latest, err := db.GetLatestAuditReport(t.Context(), "corp.ntds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest == nil || latest.ID != second.ID {
			t.Errorf("expected second run to be latest")
		}
	})

	t.Run("unknown target has no latest", func(t *testing.T) {
		t.Parallel()

		latest, err := db.GetLatestAuditReport(t.Context(), "nope")
		if err != nil || latest != nil {
			t.Errorf("expected nil, nil; got %v, %v", latest, err)
		}
	})

	t.Run("metadata newest first", func(t *testing.T) {
		t.Parallel()

		history, err := db.GetAuditHistory(t.Context(), "corp.ntds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(history))
		}
		if history[0].RunID != second.ID || history[1].RunID != first.ID {
			t.Error("expected newest first")
		}
		if !history[0].Timestamp.Equal(base.Add(time.Hour)) {
			t.Errorf("unexpected timestamp %v", history[0].Timestamp)
		}
		if history[0].Counters.Weak != 2 || history[0].IndexFingerprint != "abc" {
			t.Errorf("unexpected metadata: %+v", history[0])
		}
	})

	t.Run("failed run keeps its error", func(t *testing.T) {
		t.Parallel()

		history, err := db.GetAuditHistory(t.Context(), "branch.ntds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 1 || history[0].Error != "dump not found" {
			t.Errorf("unexpected history: %+v", history)
		}
	})
}

// TestDiffLatest tests comparing the two latest runs.
func TestDiffLatest(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("reports newly weak and resolved accounts", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		runs := []*model.AuditReport{
			newReport("corp.ntds", base, "abc", "zed"),
			newReport("corp.ntds", base.Add(time.Hour), "abc", "alice", "carol"),
			newReport("corp.ntds", base.Add(2*time.Hour), "abc", "bob", "carol"),
		}
		for _, r := range runs {
			if _, err := db.SaveAuditReport(t.Context(), r); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
		}

		diff, err := db.DiffLatest(t.Context(), "corp.ntds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff.Current.RunID != runs[2].ID || diff.Previous.RunID != runs[1].ID {
			t.Error("expected the two latest runs")
		}
		if len(diff.NewlyWeak) != 1 || diff.NewlyWeak[0] != "bob" {
			t.Errorf("unexpected newly weak: %v", diff.NewlyWeak)
		}
		if len(diff.Resolved) != 1 || diff.Resolved[0] != "alice" {
			t.Errorf("unexpected resolved: %v", diff.Resolved)
		}
		if len(diff.StillWeak) != 1 || diff.StillWeak[0] != "carol" {
			t.Errorf("unexpected still weak: %v", diff.StillWeak)
		}
		if diff.IndexChanged {
			t.Error("expected same index")
		}
	})

	t.Run("flags a changed index", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		for _, r := range []*model.AuditReport{
			newReport("corp.ntds", base, "abc"),
			newReport("corp.ntds", base.Add(time.Hour), "def"),
		} {
			if _, err := db.SaveAuditReport(t.Context(), r); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
		}

		diff, err := db.DiffLatest(t.Context(), "corp.ntds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !diff.IndexChanged {
			t.Error("expected IndexChanged")
		}
	})

	t.Run("failed runs are skipped, not counted as resolved", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		failed := model.NewAuditReport("corp.ntds")
		failed.StartedAt = base.Add(2 * time.Hour)
		failed.IndexFingerprint = "abc"
		failed.ErrorMessage = "no accounts retrieved"
		failed.Finish()

		for _, r := range []*model.AuditReport{
			newReport("corp.ntds", base, "abc", "alice"),
			newReport("corp.ntds", base.Add(time.Hour), "abc", "alice", "bob"),
			failed,
		} {
			if _, err := db.SaveAuditReport(t.Context(), r); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
		}

		diff, err := db.DiffLatest(t.Context(), "corp.ntds")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff.Current.Error != "" || diff.Previous.Error != "" {
			t.Errorf("expected two successful runs, got %+v and %+v", diff.Previous, diff.Current)
		}
		if len(diff.Resolved) != 0 {
			t.Errorf("expected nothing resolved, got %v", diff.Resolved)
		}
		if len(diff.NewlyWeak) != 1 || diff.NewlyWeak[0] != "bob" {
			t.Errorf("unexpected newly weak: %v", diff.NewlyWeak)
		}
		if len(diff.StillWeak) != 1 || diff.StillWeak[0] != "alice" {
			t.Errorf("unexpected still weak: %v", diff.StillWeak)
		}
		if len(diff.SkippedFailed) != 1 || diff.SkippedFailed[0].RunID != failed.ID {
			t.Errorf("expected the failed run to be reported as skipped, got %+v", diff.SkippedFailed)
		}
	})

	t.Run("failed runs do not count toward history", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		failed := model.NewAuditReport("corp.ntds")
		failed.StartedAt = base.Add(time.Hour)
		failed.ErrorMessage = "dump not found"
		failed.Finish()

		for _, r := range []*model.AuditReport{newReport("corp.ntds", base, "abc", "alice"), failed} {
			if _, err := db.SaveAuditReport(t.Context(), r); err != nil {
				t.Fatalf("failed to save: %v", err)
			}
		}

		_, err := db.DiffLatest(t.Context(), "corp.ntds")
		if !errors.Is(err, ErrNotEnoughHistory) {
			t.Errorf("expected ErrNotEnoughHistory, got %v", err)
		}
	})

	t.Run("single run is not enough", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		if _, err := db.SaveAuditReport(t.Context(), newReport("corp.ntds", base, "abc")); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		_, err := db.DiffLatest(t.Context(), "corp.ntds")
		if !errors.Is(err, ErrNotEnoughHistory) {
			t.Errorf("expected ErrNotEnoughHistory, got %v", err)
		}
	})
}

// TestParseTimestamp tests parsing timestamps in different formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"stored format", "2026-03-01T09:00:00.000000000Z", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{"SQLite default", "2024-01-15 10:30:45", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"RFC3339", "2024-01-15T10:30:45Z", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"garbage", "not a time", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.expected) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
