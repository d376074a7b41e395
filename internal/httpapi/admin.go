package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
	"github.com/ssfxx0923/Learning-Studio/internal/indexsync"
)

func (s *Server) routeAdmin(w http.ResponseWriter, r *http.Request, rest []string, correlationID string) bool {
	switch {
	case len(rest) == 1 && rest[0] == "sync" && r.Method == http.MethodGet:
		if s.requireAdmin(w, r, "admin:read", correlationID) {
			s.handleAdminSync(w, r, correlationID)
		}
	case len(rest) == 1 && rest[0] == "sync" && r.Method == http.MethodPost:
		if s.requireAdmin(w, r, "admin:sync", correlationID) {
			s.handleAdminSyncNow(w, r, correlationID)
		}
	case len(rest) == 1 && rest[0] == "dashboard" && r.Method == http.MethodGet:
		s.handleDashboard(w, r)
	default:
		return false
	}
	return true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request, scope, correlationID string) bool {
	if _, authErr := authorizeAdmin(r.Header.Get("Authorization"), s.cfg.AdminSecret, scope, time.Now().UTC()); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, correlationID)
		return false
	}
	return true
}

type adminSyncResponse struct {
	Schedulers  []indexsync.Status `json:"schedulers"`
	Journal     []indexsync.Entry  `json:"journal"`
	JournalErr  string             `json:"journalError,omitempty"`
	Subscribers int                `json:"subscribers"`
}

func (s *Server) handleAdminSync(w http.ResponseWriter, r *http.Request, correlationID string) {
	resp := adminSyncResponse{
		Schedulers: []indexsync.Status{},
		Journal:    []indexsync.Entry{},
	}
	if s.sync != nil {
		resp.Schedulers = s.sync.Status()
	}
	if s.journal != nil {
		limit := parseBoundedInt(r.URL.Query().Get("limit"), 50, 1, 500)
		entries, err := s.journal.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Warn("read sync journal", "correlationId", correlationID, "err", err)
			resp.JournalErr = err.Error()
		} else {
			resp.Journal = entries
		}
	}
	if s.hub != nil {
		resp.Subscribers = s.hub.Subscribers()
	}
	writeData(w, http.StatusOK, resp)
}

// handleAdminSyncNow reconciles the collections named in ?collections=
// (comma separated, default all) and returns one report per collection.
func (s *Server) handleAdminSyncNow(w http.ResponseWriter, r *http.Request, correlationID string) {
	names := []string{"all"}
	if raw := strings.TrimSpace(r.URL.Query().Get("collections")); raw != "" {
		names = strings.Split(raw, ",")
	}
	cols, err := s.catalog.Select(names)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
		return
	}
	reports := make([]entitystore.Report, 0, len(cols))
	for _, col := range cols {
		var report entitystore.Report
		if sched, ok := s.lookupScheduler(col.Name()); ok {
			report, err = sched.SyncNow(r.Context(), "admin")
		} else {
			report, err = col.SyncIndex(r.Context())
		}
		if err != nil {
			s.writeStoreError(w, err, correlationID)
			return
		}
		report.Collection = col.Name()
		reports = append(reports, report)
	}
	writeData(w, http.StatusOK, reports)
}
