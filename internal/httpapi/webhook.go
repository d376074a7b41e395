package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ssfxx0923/Learning-Studio/internal/generation"
)

// proxiedEndpoints maps engine webhooks to the body field each one needs.
var proxiedEndpoints = map[string]string{
	"translate": "word",
	"analyze":   "text",
}

func (s *Server) handleEngineProxy(w http.ResponseWriter, r *http.Request, endpoint, correlationID string) {
	field, ok := proxiedEndpoints[endpoint]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
		return
	}
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "engine proxy is not configured", correlationID)
		return
	}
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return
	}
	if value, _ := payload[field].(string); strings.TrimSpace(value) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing "+field+" parameter", correlationID)
		return
	}

	resp, err := s.engine.Forward(r.Context(), "/english/"+endpoint, body)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("engine proxy failed", "endpoint", endpoint, "correlationId", correlationID, "err", err)
		message := endpoint + " failed"
		var httpErr *generation.HTTPError
		if errors.As(err, &httpErr) {
			message += ": " + httpErr.Error()
		}
		writeError(w, status, "engine_error", message, correlationID)
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}
