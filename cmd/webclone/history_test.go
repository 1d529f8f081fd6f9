package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
)

// seedHistory records one successful and one failed run in a new database.
func seedHistory(t *testing.T) (dbDir string, ok, failed *model.CloneJob) {
	t.Helper()

	dbDir = t.TempDir()
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ok, err = model.NewCloneJob("https://example.com/", "out")
	if err != nil {
		t.Fatal(err)
	}
	ok.StartedAt = time.Now().Add(-time.Minute)
	ok.References = []string{"https://example.com/a.png"}
	ok.AddAsset(model.AssetRecord{URL: "https://example.com/a.png", LocalPath: "a.png", Status: model.AssetSaved, Bytes: 4})
	ok.DocumentWritten = true
	ok.Finish()

	failed = model.NewFailedJob("https://broken.example/", "out", errors.New("connection refused"))

	for _, job := range []*model.CloneJob{ok, failed} {
		if err := db.SaveJob(context.Background(), job); err != nil {
			t.Fatal(err)
		}
	}
	return dbDir, ok, failed
}

func historyConfig(dbDir string) *config.Config {
	cfg := config.NewConfig()
	cfg.DBDir = dbDir
	return cfg
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()
		dbDir, _, _ := seedHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), historyConfig(dbDir), historyOptions{}, quietLogger(), &out); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"example.com", "broken.example"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output does not list %s:\n%s", want, out.String())
			}
		}
	})

	t.Run("filters by host as json", func(t *testing.T) {
		t.Parallel()
		dbDir, _, _ := seedHistory(t)
		cfg := historyConfig(dbDir)
		cfg.JSONReport = true

		var out bytes.Buffer
		if err := runHistory(context.Background(), cfg, historyOptions{host: "example.com"}, quietLogger(), &out); err != nil {
			t.Fatal(err)
		}
		var runs []database.RunSummary
		if err := json.Unmarshal(out.Bytes(), &runs); err != nil {
			t.Fatalf("not JSON: %v\n%s", err, out.String())
		}
		if len(runs) != 1 || runs[0].Host != "example.com" || !runs[0].Success {
			t.Errorf("runs = %+v", runs)
		}
	})

	t.Run("shows one run", func(t *testing.T) {
		t.Parallel()
		dbDir, _, failed := seedHistory(t)

		var out bytes.Buffer
		opts := historyOptions{runID: failed.RunID}
		if err := runHistory(context.Background(), historyConfig(dbDir), opts, quietLogger(), &out); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "connection refused") {
			t.Errorf("run output does not carry the error:\n%s", out.String())
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()
		dbDir, _, _ := seedHistory(t)

		err := runHistory(context.Background(), historyConfig(dbDir), historyOptions{runID: "nope"}, quietLogger(), io.Discard)
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("err = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("lists hosts", func(t *testing.T) {
		t.Parallel()
		dbDir, _, _ := seedHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), historyConfig(dbDir), historyOptions{listHosts: true}, quietLogger(), &out); err != nil {
			t.Fatal(err)
		}
		lines := strings.Fields(out.String())
		if len(lines) != 2 {
			t.Errorf("hosts = %v, want 2", lines)
		}
	})

	t.Run("missing database is not created", func(t *testing.T) {
		t.Parallel()
		dbDir := t.TempDir()

		err := runHistory(context.Background(), historyConfig(dbDir), historyOptions{}, quietLogger(), io.Discard)
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})
}

func TestHistoryCmdFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "negative limit", args: []string{"history", "-n", "-1"}, want: "invalid limit"},
		{name: "conflicting formats", args: []string{"history", "--json", "--markdown"}, want: "conflicting"},
		{name: "too many args", args: []string{"history", "a", "b"}, want: "accepts at most 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(append(tt.args, "--db-dir", t.TempDir()))

			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
