package httpapi

import (
	"net/http"

	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

func (s *Server) routeNotes(w http.ResponseWriter, r *http.Request, rest []string, correlationID string) bool {
	notes := s.catalog.Notes
	ctx := r.Context()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		list, err := notes.List(ctx)
		s.respond(w, http.StatusOK, list, err, correlationID)
	case len(rest) == 0 && r.Method == http.MethodPost:
		var input learning.NoteInput
		if !s.decodeJSONBody(w, r, correlationID, &input) {
			return true
		}
		note, err := notes.Create(ctx, input)
		s.respond(w, http.StatusCreated, note, err, correlationID)
	case len(rest) == 1 && rest[0] == "search" && r.Method == http.MethodGet:
		query := r.URL.Query().Get("q")
		if query == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "query parameter q is required", correlationID)
			return true
		}
		found, err := notes.Search(ctx, query)
		s.respond(w, http.StatusOK, found, err, correlationID)
	case len(rest) == 1 && rest[0] == "sync-index" && r.Method == http.MethodPost:
		s.syncCollection(w, r, notes, correlationID)
	case len(rest) == 2 && rest[0] == "tag" && r.Method == http.MethodGet:
		found, err := notes.ByTag(ctx, rest[1])
		s.respond(w, http.StatusOK, found, err, correlationID)
	case len(rest) == 2 && rest[0] == "category" && r.Method == http.MethodGet:
		found, err := notes.ByCategory(ctx, rest[1])
		s.respond(w, http.StatusOK, found, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodGet:
		note, err := notes.Get(ctx, rest[0])
		s.respond(w, http.StatusOK, note, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodPut:
		var patch learning.NotePatch
		if !s.decodeJSONBody(w, r, correlationID, &patch) {
			return true
		}
		note, err := notes.Update(ctx, rest[0], patch)
		s.respond(w, http.StatusOK, note, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		err := notes.Delete(ctx, rest[0])
		s.respond(w, http.StatusOK, map[string]string{"id": rest[0]}, err, correlationID)
	default:
		return false
	}
	return true
}
