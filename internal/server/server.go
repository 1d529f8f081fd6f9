package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
	"github.com/nao1215/webclone/internal/pipeline"
)

const (
	// SitesPrefix is the URL prefix under which cloned sites are served.
	SitesPrefix = "/cloned_sites"

	successMessage = "Website cloned successfully"
	failurePrefix  = "Failed to clone website: "

	// maxRequestBody bounds the JSON body of POST /api/clone.
	maxRequestBody = 64 << 10

	defaultHistoryLimit = 50
)

// Cloner runs one clone job. pipeline.Cloner implements it.
type Cloner interface {
	Clone(ctx context.Context, seedURL string, opts pipeline.JobOptions) *model.CloneJob
}

// History reads recorded runs. database.HistoryDB implements it.
type History interface {
	ListRuns(ctx context.Context, host string, limit int) ([]database.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*model.CloneJob, error)
}

// Server is the HTTP API.
type Server struct {
	cloner     Cloner
	history    History
	outputRoot string
	defaults   pipeline.JobOptions
	logger     *slog.Logger
	locks      *keyedMutex
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for requests and clone outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHistory enables the history endpoints.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithJobDefaults sets options applied to every clone request. The
// request's enhance flag is OR-ed in.
func WithJobDefaults(opts pipeline.JobOptions) Option {
	return func(s *Server) {
		s.defaults = opts
	}
}

// New creates a Server cloning through cloner and serving outputRoot.
func New(cloner Cloner, outputRoot string, opts ...Option) *Server {
	s := &Server{
		cloner:     cloner,
		outputRoot: outputRoot,
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/clone", s.handleClone)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/history/{runID}", s.handleRun)

	files := http.StripPrefix(SitesPrefix+"/", http.FileServer(http.Dir(s.outputRoot)))
	r.Handle(SitesPrefix+"/*", files)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, waiting for running clones up to the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// cloneRequest is the body of POST /api/clone.
type cloneRequest struct {
	URL     string `json:"url"`
	Enhance bool   `json:"enhance"`
}

// cloneResponse is the success body of POST /api/clone.
type cloneResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	FilesCount int      `json:"files_count"`
	ClonedURL  string   `json:"cloned_url"`
	Files      []string `json:"files"`
	Enhanced   bool     `json:"enhanced"`
	RunID      string   `json:"run_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	u, err := model.ParseSeedURL(req.URL)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	opts := s.defaults
	opts.Enhance = opts.Enhance || req.Enhance

	host := model.SiteFolderName(u)
	unlock := s.locks.Lock(host)
	job := s.cloner.Clone(r.Context(), req.URL, opts)
	unlock()

	if !job.Succeeded() {
		s.logger.Warn("clone request failed", "url", req.URL, "error", job.ErrorText())
		writeError(w, http.StatusBadRequest, failurePrefix+job.ErrorText())
		return
	}

	res := job.Result()
	writeJSON(w, http.StatusOK, cloneResponse{
		Success:    true,
		Message:    successMessage,
		FilesCount: res.FilesCount,
		ClonedURL:  ClonedURL(job.SiteFolder),
		Files:      res.Files,
		Enhanced:   job.Enhanced,
		RunID:      job.RunID,
	})
}

// ClonedURL returns the path under which the clone of siteFolder is served.
func ClonedURL(siteFolder string) string {
	return SitesPrefix + "/" + siteFolder + "/index.html"
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	host := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("host")))

	runs, err := s.history.ListRuns(r.Context(), host, limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	job, err := s.history.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, database.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// requestLogger logs one line per request through the server's slog logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}
