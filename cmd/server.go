package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tradu/emailqc/internal/copydoc"
	"github.com/tradu/emailqc/internal/model"
	"github.com/tradu/emailqc/internal/pipeline"
	"github.com/tradu/emailqc/internal/preview"
	"github.com/tradu/emailqc/internal/progress"
	"github.com/tradu/emailqc/internal/ratelimit"
	"github.com/tradu/emailqc/internal/store"
)

// server holds the HTTP API's dependencies.
type server struct {
	store          store.Store
	worker         *pipeline.Worker
	limiter        *ratelimit.Limiter
	allowedHosts   []string
	allowedOrigins []string
	now            func() time.Time
}

func newServer(st store.Store, worker *pipeline.Worker, limiter *ratelimit.Limiter, allowedHosts, allowedOrigins []string) *server {
	return &server{
		store:          st,
		worker:         worker,
		limiter:        limiter,
		allowedHosts:   allowedHosts,
		allowedOrigins: allowedOrigins,
		now:            time.Now,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/qc-runs", func(r chi.Router) {
		r.Post("/", s.createRun)
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
		r.Put("/{id}", s.renameRun)
	})

	return r
}

// runSubmission is the POST /api/qc-runs payload. EmailPreviewLinks is a
// pointer so an omitted field can be told apart from an empty list: the
// dashboard must fetch the preview before submitting, even if it saw no
// links.
type runSubmission struct {
	Name              string              `json:"name"`
	BrazeURL          string              `json:"brazeUrl"`
	CopyDocText       string              `json:"copyDocText"`
	CopyDocHTML       string              `json:"copyDocHtml"`
	CopyDocLinks      []model.CopyDocLink `json:"copyDocLinks"`
	EmailPreviewLinks *[]string           `json:"emailPreviewLinks"`
	Silo              string              `json:"silo"`
	Entity            string              `json:"entity"`
	EmailType         string              `json:"emailType"`
}

func (s *server) createRun(w http.ResponseWriter, r *http.Request) {
	decision := s.limiter.Allow(clientIP(r))
	if !decision.Allowed {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again later.")
		return
	}

	var payload runSubmission
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	name := strings.TrimSpace(payload.Name)
	brazeURL := strings.TrimSpace(payload.BrazeURL)
	copyDocText := strings.TrimSpace(payload.CopyDocText)
	copyDocHTML := strings.TrimSpace(payload.CopyDocHTML)
	silo := strings.TrimSpace(payload.Silo)
	entity := strings.TrimSpace(payload.Entity)
	emailType := strings.TrimSpace(payload.EmailType)
	if emailType == "" {
		emailType = "marketing"
	}

	copyDocLinks := copydoc.SanitizeLinks(payload.CopyDocLinks)
	if len(copyDocLinks) == 0 && copyDocHTML != "" {
		copyDocLinks = copydoc.ExtractLinksFromHTML(copyDocHTML)
	}

	if brazeURL == "" || copyDocText == "" || silo == "" || entity == "" {
		writeError(w, http.StatusBadRequest, "brazeUrl, copyDocText, silo, and entity are required")
		return
	}
	if payload.EmailPreviewLinks == nil {
		writeError(w, http.StatusBadRequest, "emailPreviewLinks must be provided. Fetch the Braze preview before submitting.")
		return
	}
	if !model.EmailTypes[emailType] {
		writeError(w, http.StatusBadRequest, "emailType must be marketing or transactional")
		return
	}

	target, err := url.Parse(brazeURL)
	if err != nil || target.Host == "" {
		writeError(w, http.StatusBadRequest, "brazeUrl must be a valid URL")
		return
	}
	if !preview.HostAllowed(target, s.allowedHosts) {
		writeError(w, http.StatusBadRequest, "brazeUrl host is not permitted")
		return
	}

	previewLinks := make([]string, 0, len(*payload.EmailPreviewLinks))
	for _, href := range *payload.EmailPreviewLinks {
		if trimmed := strings.TrimSpace(href); trimmed != "" {
			previewLinks = append(previewLinks, trimmed)
		}
	}

	run, err := s.store.CreateRun(r.Context(), store.NewRun{
		Name:         name,
		BrazeURL:     target.String(),
		CopyDocText:  copyDocText,
		CopyDocHTML:  copyDocHTML,
		CopyDocLinks: copyDocLinks,
		Silo:         silo,
		Entity:       entity,
		EmailType:    emailType,
	})
	if err != nil {
		zap.L().Error("api: create run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create QC run")
		return
	}

	err = s.worker.Enqueue(pipeline.Job{
		RunID:             run.ID,
		BrazeURL:          target.String(),
		CopyDocText:       copyDocText,
		CopyDocHTML:       copyDocHTML,
		CopyDocLinks:      copyDocLinks,
		EmailPreviewLinks: previewLinks,
		Silo:              silo,
		Entity:            entity,
		EmailType:         emailType,
	})
	if err != nil {
		zap.L().Warn("api: queue full, rejecting run", zap.String("run_id", run.ID))
		diagnostic := model.CheckResult{
			Type:    model.CheckTypeSystemNotice,
			Name:    "Run failed",
			Pass:    false,
			Details: "Processing queue is full.",
		}
		if failErr := s.store.FailRun(r.Context(), run.ID, diagnostic); failErr != nil {
			zap.L().Error("api: record queue rejection", zap.Error(failErr))
		}
		writeError(w, http.StatusServiceUnavailable, "Processing queue is full. Try again later.")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": run.ID})
}

// runSummary is the compact run representation used by list and rename.
type runSummary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	BrazeURL     string     `json:"brazeUrl"`
	Silo         string     `json:"silo"`
	Entity       string     `json:"entity"`
	EmailType    string     `json:"emailType"`
	Status       string     `json:"status"`
	SummaryPass  *bool      `json:"summaryPass"`
	ModelVersion string     `json:"modelVersion,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt"`
}

func summarize(run *model.QcRun) runSummary {
	return runSummary{
		ID:           run.ID,
		Name:         run.Name,
		BrazeURL:     run.BrazeURL,
		Silo:         run.Silo,
		Entity:       run.Entity,
		EmailType:    run.EmailType,
		Status:       string(run.Status),
		SummaryPass:  run.SummaryPass,
		ModelVersion: run.ModelVersion,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.RunFilter{
		Silo:   q.Get("silo"),
		Entity: q.Get("entity"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(q.Get("pageSize")); err == nil && pageSize > 0 {
		filter.PageSize = pageSize
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filter.To = &to
	}

	runs, total, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list QC runs")
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for i := range runs {
		summaries = append(summaries, summarize(&runs[i]))
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		if pageSize > 100 {
			pageSize = 100
		} else {
			pageSize = 20
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": summaries,
		"meta": map[string]any{
			"total":    total,
			"page":     page,
			"pageSize": pageSize,
		},
	})
}

// runDetail is the full run representation, annotated with the stage
// progress estimate the dashboard polls for.
type runDetail struct {
	*model.QcRun
	Progress  int                `json:"progress"`
	StageInfo progress.StageMeta `json:"stageInfo"`
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "QC run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load QC run")
		return
	}

	writeJSON(w, http.StatusOK, runDetail{
		QcRun:     run,
		Progress:  progress.StageProgress(run.Status, s.now().Sub(run.StartedAt)),
		StageInfo: progress.Meta(run.Status),
	})
}

func (s *server) renameRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	run, err := s.store.UpdateRunName(r.Context(), id, name)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "QC run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: rename run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update QC run name")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"run": summarize(run)})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// clientIP resolves the submitting client's address, preferring the first
// X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
