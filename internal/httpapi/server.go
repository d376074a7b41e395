package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
	"github.com/ssfxx0923/Learning-Studio/internal/generation"
	"github.com/ssfxx0923/Learning-Studio/internal/indexsync"
	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

type ServerConfig struct {
	CORSOrigin   string
	MaxBodyBytes int64
	// AdminSecret enables bearer-token checks on /api/admin routes.
	AdminSecret string
}

// ArticleGenerator runs the asynchronous article creation flow.
type ArticleGenerator interface {
	Generate(ctx context.Context, message string) (learning.Article, error)
}

type EngineProxy interface {
	Forward(ctx context.Context, path string, body []byte) (*generation.Response, error)
	Reachable(ctx context.Context) bool
}

type Dependencies struct {
	Catalog   *learning.Catalog
	Generator ArticleGenerator
	Engine    EngineProxy
	Sync      *indexsync.Group
	Journal   indexsync.Journal
	Hub       *Hub
	Logger    *log.Logger
}

type Server struct {
	cfg       ServerConfig
	catalog   *learning.Catalog
	generator ArticleGenerator
	engine    EngineProxy
	sync      *indexsync.Group
	journal   indexsync.Journal
	hub       *Hub
	logger    *log.Logger
	started   time.Time
}

func NewServer(deps Dependencies, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if strings.TrimSpace(cfg.CORSOrigin) == "" {
		cfg.CORSOrigin = "*"
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		cfg:       cfg,
		catalog:   deps.Catalog,
		generator: deps.Generator,
		engine:    deps.Engine,
		sync:      deps.Sync,
		journal:   deps.Journal,
		hub:       deps.Hub,
		logger:    logger,
		started:   time.Now().UTC(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.writeCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	correlationID := getCorrelationID(r)
	w.Header().Set("X-Correlation-Id", correlationID)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
		return
	}

	switch parts[1] {
	case "health":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleHealth(w, r, correlationID)
			return
		}
	case "articles":
		if s.routeArticles(w, r, parts[2:], correlationID) {
			return
		}
	case "plans":
		if s.routePlans(w, r, parts[2:], correlationID) {
			return
		}
	case "mental-health":
		if s.routeSessions(w, r, s.catalog.MentalHealth, parts[2:], correlationID) {
			return
		}
	case "research":
		if s.routeSessions(w, r, s.catalog.Research, parts[2:], correlationID) {
			return
		}
	case "notes":
		if s.routeNotes(w, r, parts[2:], correlationID) {
			return
		}
	case "webhook":
		if len(parts) == 4 && parts[2] == "english" && r.Method == http.MethodPost {
			s.handleEngineProxy(w, r, parts[3], correlationID)
			return
		}
	case "admin":
		if s.routeAdmin(w, r, parts[2:], correlationID) {
			return
		}
	case "events":
		if len(parts) == 2 && r.Method == http.MethodGet {
			s.handleEvents(w, r, correlationID)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, correlationID string) {
	data := map[string]any{
		"status":    "ok",
		"startedAt": s.started,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}
	if s.engine != nil && parseBool(r.URL.Query().Get("engine"), false) {
		data["engineReachable"] = s.engine.Reachable(r.Context())
	}
	writeData(w, http.StatusOK, data)
}

// syncCollection runs reconciliation through the scheduler when one exists so
// that subscribers see manual corrections too.
func (s *Server) syncCollection(w http.ResponseWriter, r *http.Request, col learning.Collection, correlationID string) {
	var (
		report entitystore.Report
		err    error
	)
	if sched, ok := s.lookupScheduler(col.Name()); ok {
		report, err = sched.SyncNow(r.Context(), "api")
	} else {
		report, err = col.SyncIndex(r.Context())
	}
	if err != nil {
		s.writeStoreError(w, err, correlationID)
		return
	}
	report.Collection = col.Name()
	writeData(w, http.StatusOK, report)
}

func (s *Server) lookupScheduler(name string) (*indexsync.Scheduler, bool) {
	if s.sync == nil {
		return nil, false
	}
	return s.sync.Lookup(name)
}

func (s *Server) writeCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-Id")
	if s.cfg.CORSOrigin != "*" {
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}
}

// writeStoreError maps store and generation failures to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, correlationID string) {
	status, code := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "correlationId", correlationID, "err", err)
		message = "internal error"
	}
	extra := map[string]any{}
	var timeoutErr *generation.TimeoutError
	if errors.As(err, &timeoutErr) {
		extra["id"] = timeoutErr.ID
	}
	var notifyErr *generation.NotifyError
	if errors.As(err, &notifyErr) {
		extra["id"] = notifyErr.ID
	}
	writeErrorWith(w, status, code, message, correlationID, extra)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, entitystore.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entitystore.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, entitystore.ErrMismatch):
		return http.StatusBadRequest, "id_mismatch"
	case errors.Is(err, entitystore.ErrInvalidID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, entitystore.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, entitystore.ErrUnsupported):
		return http.StatusMethodNotAllowed, "unsupported"
	case errors.Is(err, generation.ErrNotifyFailed):
		return http.StatusBadGateway, "engine_unavailable"
	case errors.Is(err, generation.ErrGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "generation_timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func getCorrelationID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Correlation-Id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, correlationID string, dst any) bool {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeErrorWith(w, status, code, message, correlationID, nil)
}

func writeErrorWith(w http.ResponseWriter, status int, code, message, correlationID string, extra map[string]any) {
	body := map[string]any{
		"success":       false,
		"code":          code,
		"error":         message,
		"correlationId": correlationID,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func parseBoundedInt(raw string, fallback, min, max int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	if parsed < min {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}

func parseBool(raw string, fallback bool) bool {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return parsed
}
