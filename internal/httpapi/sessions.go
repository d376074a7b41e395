package httpapi

import (
	"net/http"

	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

// routeSessions serves both chat collections; they differ only in storage
// location and ordering.
func (s *Server) routeSessions(w http.ResponseWriter, r *http.Request, sessions *learning.Sessions, rest []string, correlationID string) bool {
	ctx := r.Context()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		list, err := sessions.List(ctx)
		s.respond(w, http.StatusOK, list, err, correlationID)
	case len(rest) == 0 && r.Method == http.MethodPost:
		var req struct {
			Title string `json:"title"`
			Topic string `json:"topic"`
		}
		if !s.decodeJSONBody(w, r, correlationID, &req) {
			return true
		}
		session, err := sessions.Create(ctx, req.Title, req.Topic)
		s.respond(w, http.StatusCreated, session, err, correlationID)
	case len(rest) == 1 && rest[0] == "sync-index" && r.Method == http.MethodPost:
		s.syncCollection(w, r, sessions, correlationID)
	case len(rest) == 1 && r.Method == http.MethodGet:
		session, err := sessions.Get(ctx, rest[0])
		s.respond(w, http.StatusOK, session, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodPut:
		var patch learning.SessionPatch
		if !s.decodeJSONBody(w, r, correlationID, &patch) {
			return true
		}
		session, err := sessions.Update(ctx, rest[0], patch)
		s.respond(w, http.StatusOK, session, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		err := sessions.Delete(ctx, rest[0])
		s.respond(w, http.StatusOK, map[string]string{"id": rest[0]}, err, correlationID)
	case len(rest) == 2 && rest[1] == "messages" && r.Method == http.MethodGet:
		messages, err := sessions.Messages(ctx, rest[0])
		s.respond(w, http.StatusOK, messages, err, correlationID)
	case len(rest) == 2 && rest[1] == "messages" && r.Method == http.MethodPost:
		var msg learning.Message
		if !s.decodeJSONBody(w, r, correlationID, &msg) {
			return true
		}
		session, err := sessions.AppendMessage(ctx, rest[0], msg)
		s.respond(w, http.StatusOK, session, err, correlationID)
	default:
		return false
	}
	return true
}
