package httpapi

import (
	"net/http"
	"strings"
)

func (s *Server) routeArticles(w http.ResponseWriter, r *http.Request, rest []string, correlationID string) bool {
	articles := s.catalog.Articles
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		list, err := articles.List(r.Context())
		if err != nil {
			s.writeStoreError(w, err, correlationID)
			return true
		}
		writeData(w, http.StatusOK, list)
	case len(rest) == 1 && rest[0] == "create-folder" && r.Method == http.MethodPost:
		s.handleCreateArticleFolder(w, r, correlationID)
	case len(rest) == 1 && rest[0] == "generate" && r.Method == http.MethodPost:
		s.handleGenerateArticle(w, r, correlationID)
	case len(rest) == 1 && rest[0] == "sync-index" && r.Method == http.MethodPost:
		s.syncCollection(w, r, articles, correlationID)
	case len(rest) == 1 && r.Method == http.MethodGet:
		article, err := articles.Get(r.Context(), rest[0])
		if err != nil {
			s.writeStoreError(w, err, correlationID)
			return true
		}
		writeData(w, http.StatusOK, article)
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := articles.Delete(r.Context(), rest[0]); err != nil {
			s.writeStoreError(w, err, correlationID)
			return true
		}
		writeData(w, http.StatusOK, map[string]string{"id": rest[0]})
	default:
		return false
	}
	return true
}

func (s *Server) handleCreateArticleFolder(w http.ResponseWriter, r *http.Request, correlationID string) {
	var req struct {
		ArticleID string `json:"articleId"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &req) {
		return
	}
	id := strings.TrimSpace(req.ArticleID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "articleId is required", correlationID)
		return
	}
	path, err := s.catalog.Articles.CreateFolder(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, correlationID)
		return
	}
	s.logger.Info("article folder created", "article", id)
	writeData(w, http.StatusCreated, map[string]string{"articleId": id, "path": path})
}

func (s *Server) handleGenerateArticle(w http.ResponseWriter, r *http.Request, correlationID string) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "article generation is not configured", correlationID)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &req) {
		return
	}
	article, err := s.generator.Generate(r.Context(), req.Message)
	if err != nil {
		s.writeStoreError(w, err, correlationID)
		return
	}
	writeData(w, http.StatusCreated, article)
}
