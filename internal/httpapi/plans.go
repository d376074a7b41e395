package httpapi

import (
	"net/http"

	"github.com/ssfxx0923/Learning-Studio/internal/learning"
)

func (s *Server) routePlans(w http.ResponseWriter, r *http.Request, rest []string, correlationID string) bool {
	plans := s.catalog.Plans
	ctx := r.Context()
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		list, err := plans.List(ctx)
		s.respond(w, http.StatusOK, list, err, correlationID)
	case len(rest) == 0 && r.Method == http.MethodPost:
		var input learning.Plan
		if !s.decodeJSONBody(w, r, correlationID, &input) {
			return true
		}
		plan, err := plans.Create(ctx, input)
		s.respond(w, http.StatusCreated, plan, err, correlationID)
	case len(rest) == 1 && rest[0] == "sync-index" && r.Method == http.MethodPost:
		s.syncCollection(w, r, plans, correlationID)
	case len(rest) == 1 && r.Method == http.MethodGet:
		plan, err := plans.Get(ctx, rest[0])
		s.respond(w, http.StatusOK, plan, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodPut:
		var input learning.Plan
		if !s.decodeJSONBody(w, r, correlationID, &input) {
			return true
		}
		plan, err := plans.Update(ctx, rest[0], input)
		s.respond(w, http.StatusOK, plan, err, correlationID)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		err := plans.Delete(ctx, rest[0])
		s.respond(w, http.StatusOK, map[string]string{"id": rest[0]}, err, correlationID)
	case len(rest) == 2 && rest[1] == "chat-history" && r.Method == http.MethodGet:
		history, err := plans.ChatHistory(ctx, rest[0])
		s.respond(w, http.StatusOK, history, err, correlationID)
	case len(rest) == 2 && rest[1] == "chat-message" && r.Method == http.MethodPost:
		var msg learning.Message
		if !s.decodeJSONBody(w, r, correlationID, &msg) {
			return true
		}
		plan, err := plans.AppendMessage(ctx, rest[0], msg)
		s.respond(w, http.StatusOK, plan, err, correlationID)
	default:
		return false
	}
	return true
}

// respond writes data on success or the mapped error otherwise.
func (s *Server) respond(w http.ResponseWriter, status int, data any, err error, correlationID string) {
	if err != nil {
		s.writeStoreError(w, err, correlationID)
		return
	}
	writeData(w, status, data)
}
