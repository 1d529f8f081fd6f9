package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/nao1215/webclone/internal/config"
	"github.com/nao1215/webclone/internal/pipeline"
)

func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	flag := cmd.Flags().Lookup("addr")
	if flag == nil {
		t.Fatal("expected addr flag")
	}
	if flag.DefValue != config.DefaultServerAddress {
		t.Errorf("addr default = %q, want %q", flag.DefValue, config.DefaultServerAddress)
	}
	for _, name := range []string{"dir", "tor", "embedded-tor", "enhance", "json-logs", "no-history"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if cmd.Flags().Lookup("batch") != nil {
		t.Error("serve must not take --batch")
	}
}

func TestRunServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.OutputRoot = t.TempDir()
	cfg.DBDir = t.TempDir()
	cfg.SaveToDB = true
	cfg.ServerAddress = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cfg, pipeline.JobOptions{}, quietLogger(), io.Discard)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}
}
