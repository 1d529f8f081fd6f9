package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
	"github.com/nao1215/webclone/internal/pipeline"
)

// fakeCloner writes an index.html for every seed and records calls.
type fakeCloner struct {
	root  string
	fail  error
	delay time.Duration

	mu       sync.Mutex
	calls    []pipeline.JobOptions
	running  atomic.Int32
	peakSame atomic.Int32
}

func (f *fakeCloner) Clone(_ context.Context, seedURL string, opts pipeline.JobOptions) *model.CloneJob {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()

	n := f.running.Add(1)
	for {
		peak := f.peakSame.Load()
		if n <= peak || f.peakSame.CompareAndSwap(peak, n) {
			break
		}
	}
	defer f.running.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.fail != nil {
		return model.NewFailedJob(seedURL, f.root, f.fail)
	}
	job, err := model.NewCloneJob(seedURL, f.root)
	if err != nil {
		return model.NewFailedJob(seedURL, f.root, err)
	}
	job.References = []string{"style.css", "a.png"}
	job.Enhanced = opts.Enhance
	if err := os.MkdirAll(job.OutputFolder, 0o755); err == nil {
		_ = os.WriteFile(filepath.Join(job.OutputFolder, "index.html"), []byte("<html>cloned</html>"), 0o644)
	}
	job.Finish()
	return job
}

func (f *fakeCloner) lastOptions() pipeline.JobOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeHistory struct {
	runs []database.RunSummary
	job  *model.CloneJob
	err  error

	gotHost  string
	gotLimit int
}

func (h *fakeHistory) ListRuns(_ context.Context, host string, limit int) ([]database.RunSummary, error) {
	h.gotHost = host
	h.gotLimit = limit
	return h.runs, h.err
}

func (h *fakeHistory) GetRun(_ context.Context, runID string) (*model.CloneJob, error) {
	if h.err != nil {
		return nil, h.err
	}
	if h.job == nil || h.job.RunID != runID {
		return nil, fmt.Errorf("%w: %s", database.ErrRunNotFound, runID)
	}
	return h.job, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postClone(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/clone", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Detail
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(), WithLogger(quietLogger()))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"healthy"}` {
		t.Errorf("body = %s", got)
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		cloner := &fakeCloner{root: root}
		srv := New(cloner, root, WithLogger(quietLogger()))

		rec := postClone(t, srv.Handler(), `{"url":"https://Example.com/page","enhance":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var got cloneResponse
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !got.Success || got.Message != "Website cloned successfully" {
			t.Errorf("unexpected response: %+v", got)
		}
		if got.FilesCount != 2 || len(got.Files) != 2 {
			t.Errorf("files = %d %v, want 2", got.FilesCount, got.Files)
		}
		if got.ClonedURL != "/cloned_sites/example.com/index.html" {
			t.Errorf("cloned_url = %q", got.ClonedURL)
		}
		if !got.Enhanced {
			t.Error("enhanced = false, want true")
		}
		if !cloner.lastOptions().Enhance {
			t.Error("enhance flag was not forwarded to the cloner")
		}
	})

	t.Run("job defaults are merged", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		cloner := &fakeCloner{root: root}
		srv := New(cloner, root,
			WithLogger(quietLogger()),
			WithJobDefaults(pipeline.JobOptions{Markdown: true}),
		)

		rec := postClone(t, srv.Handler(), `{"url":"https://example.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		opts := cloner.lastOptions()
		if !opts.Markdown || opts.Enhance {
			t.Errorf("options = %+v, want markdown only", opts)
		}
	})

	t.Run("failed clone returns 400", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		srv := New(&fakeCloner{root: root, fail: errors.New("connection refused")}, root,
			WithLogger(quietLogger()))

		rec := postClone(t, srv.Handler(), `{"url":"https://example.com"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		detail := decodeDetail(t, rec)
		if !strings.HasPrefix(detail, "Failed to clone website: ") {
			t.Errorf("detail = %q", detail)
		}
		if !strings.Contains(detail, "connection refused") {
			t.Errorf("detail %q does not carry the cause", detail)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"url":`},
		{name: "missing url", body: `{}`},
		{name: "unsupported scheme", body: `{"url":"ftp://example.com"}`},
		{name: "relative url", body: `{"url":"/index.html"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			cloner := &fakeCloner{root: root}
			srv := New(cloner, root, WithLogger(quietLogger()))

			rec := postClone(t, srv.Handler(), tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			if decodeDetail(t, rec) == "" {
				t.Error("detail is empty")
			}
			if len(cloner.calls) != 0 {
				t.Error("cloner ran for an invalid request")
			}
		})
	}
}

func TestCloneSerializesSameHost(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cloner := &fakeCloner{root: root, delay: 20 * time.Millisecond}
	srv := New(cloner, root, WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"url":"https://example.com/p%d"}`, i)
			req := httptest.NewRequest(http.MethodPost, "/api/clone", strings.NewReader(body))
			srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	if peak := cloner.peakSame.Load(); peak != 1 {
		t.Errorf("peak concurrent clones for one host = %d, want 1", peak)
	}
	if n := srv.locks.size(); n != 0 {
		t.Errorf("lock table holds %d keys after all requests finished", n)
	}
}

func TestClonedSitesAreServed(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	srv := New(&fakeCloner{root: root}, root, WithLogger(quietLogger()))
	if rec := postClone(t, srv.Handler(), `{"url":"https://example.com"}`); rec.Code != http.StatusOK {
		t.Fatalf("clone status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cloned_sites/example.com/index.html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("cloned")) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cloned_sites/missing.example/index.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing site status = %d, want 404", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(), WithLogger(quietLogger()))
	req := httptest.NewRequest(http.MethodOptions, "/api/clone", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("preflight response carries no Access-Control-Allow-Origin")
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(), WithLogger(quietLogger()))
		for _, path := range []string{"/api/history", "/api/history/abc"} {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("%s status = %d, want 404", path, rec.Code)
			}
		}
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		hist := &fakeHistory{runs: []database.RunSummary{{RunID: "r1", Host: "example.com", Success: true}}}
		srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(),
			WithLogger(quietLogger()), WithHistory(hist))

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?host=Example.com&limit=5", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var runs []database.RunSummary
		if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(runs) != 1 || runs[0].RunID != "r1" {
			t.Errorf("runs = %+v", runs)
		}
		if hist.gotHost != "example.com" || hist.gotLimit != 5 {
			t.Errorf("query forwarded as host=%q limit=%d", hist.gotHost, hist.gotLimit)
		}
	})

	t.Run("default limit", func(t *testing.T) {
		t.Parallel()

		hist := &fakeHistory{}
		srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(),
			WithLogger(quietLogger()), WithHistory(hist))

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if hist.gotLimit != defaultHistoryLimit {
			t.Errorf("limit = %d, want %d", hist.gotLimit, defaultHistoryLimit)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		t.Parallel()

		srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(),
			WithLogger(quietLogger()), WithHistory(&fakeHistory{}))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=x", nil))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(),
			WithLogger(quietLogger()), WithHistory(&fakeHistory{err: errors.New("disk I/O error")}))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("get run", func(t *testing.T) {
		t.Parallel()

		job, err := model.NewCloneJob("https://example.com", "out")
		if err != nil {
			t.Fatal(err)
		}
		srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(),
			WithLogger(quietLogger()), WithHistory(&fakeHistory{job: job}))

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/"+job.RunID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got model.CloneJob
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.RunID != job.RunID {
			t.Errorf("run_id = %q, want %q", got.RunID, job.RunID)
		}

		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/unknown", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("unknown run status = %d, want 404", rec.Code)
		}
	})
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := New(&fakeCloner{root: t.TempDir()}, t.TempDir(), WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	if k.size() != 2 {
		t.Fatalf("size = %d, want 2", k.size())
	}

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock on the same key did not block")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-released
	unlockB()
	if k.size() != 0 {
		t.Errorf("size = %d after unlocking everything, want 0", k.size())
	}
}
