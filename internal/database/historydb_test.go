package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/webclone/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func finishedJob(t *testing.T, seedURL string, started time.Time) *model.CloneJob {
	t.Helper()

	job, err := model.NewCloneJob(seedURL, "out")
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	job.StartedAt = started
	job.References = []string{seedURL + "a.png", seedURL + "b.css"}
	job.AddAsset(model.AssetRecord{URL: seedURL + "a.png", LocalPath: "a.png", Status: model.AssetSaved, Bytes: 10, ContentType: "image/png"})
	job.AddAsset(model.AssetRecord{URL: seedURL + "b.css", LocalPath: "b.css", Status: model.AssetFailed, Error: "http status 404"})
	job.DocumentWritten = true
	job.AddStep("fetch")
	job.Finish()
	return job
}

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

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %s", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails on missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		job := finishedJob(t, "http://example.com/", time.Now())
		if err := db.SaveJob(context.Background(), job); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), "", 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after reopen, got %d", len(runs))
		}
	})
}

func TestSaveJobRoundTrip(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	job := finishedJob(t, "http://example.com/", time.Now().Add(-time.Second))

	if err := db.SaveJob(ctx, job); err != nil {
		t.Fatalf("failed to save job: %v", err)
	}

	got, err := db.GetRun(ctx, job.RunID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.SeedURL != job.SeedURL || got.State != model.StateDone {
		t.Errorf("unexpected run: %+v", got)
	}
	if len(got.References) != 2 || len(got.Assets) != 2 {
		t.Errorf("expected references and assets to survive, got %v / %v", got.References, got.Assets)
	}
	if got.Document != nil || got.BaseURL != nil {
		t.Error("expected in-memory fields to stay empty")
	}

	assets, err := db.ListAssets(ctx, job.RunID)
	if err != nil {
		t.Fatalf("failed to list assets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[0].LocalPath != "a.png" || assets[0].Status != model.AssetSaved || assets[0].Bytes != 10 {
		t.Errorf("unexpected first asset: %+v", assets[0])
	}
	if assets[1].Status != model.AssetFailed || assets[1].Error == "" {
		t.Errorf("unexpected second asset: %+v", assets[1])
	}

	runs, err := db.ListRuns(ctx, "example.com", 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	r := runs[0]
	if !r.Success || r.FilesCount != 2 || r.SavedCount != 1 || r.Host != "example.com" {
		t.Errorf("unexpected summary: %+v", r)
	}
	if diff := r.StartedAt.Sub(job.StartedAt); diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("expected started_at %v, got %v", job.StartedAt, r.StartedAt)
	}
	if r.Duration <= 0 {
		t.Errorf("expected positive duration, got %v", r.Duration)
	}
}

func TestSaveJobReplacesRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	job := finishedJob(t, "http://example.com/", time.Now())

	if err := db.SaveJob(ctx, job); err != nil {
		t.Fatalf("failed to save job: %v", err)
	}

	job.Assets = job.Assets[:1]
	job.AddError("write", errors.New("disk full"))
	job.Finish()
	if err := db.SaveJob(ctx, job); err != nil {
		t.Fatalf("failed to save job again: %v", err)
	}

	runs, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Success || runs[0].Error != "write: disk full" {
		t.Errorf("expected updated failure, got %+v", runs[0])
	}

	assets, err := db.ListAssets(ctx, job.RunID)
	if err != nil {
		t.Fatalf("failed to list assets: %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("expected assets to be replaced, got %d", len(assets))
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, u := range []string{"http://a.example/", "http://b.example/", "http://a.example/"} {
		if err := db.SaveJob(ctx, finishedJob(t, u, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("failed to save job %d: %v", i, err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, "", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if !runs[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("expected newest run first, got %v", runs[0].StartedAt)
		}
	})

	t.Run("filters by host", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, "a.example", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("expected 2 runs for a.example, got %d", len(runs))
		}
	})

	t.Run("applies limit", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, "", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run, got %d", len(runs))
		}
	})

	t.Run("lists hosts", func(t *testing.T) {
		hosts, err := db.ListHosts(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 2 || hosts[0] != "a.example" || hosts[1] != "b.example" {
			t.Errorf("unexpected hosts: %v", hosts)
		}
	})
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-02 03:04:05", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2026-01-02 03:04:05.500000", time.Date(2026, 1, 2, 3, 4, 5, 500000000, time.UTC)},
		{"2026-01-02T03:04:05Z", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
