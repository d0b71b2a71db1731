package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/verticelabs/acervo/internal/models"
	"github.com/verticelabs/acervo/internal/store"
)

// Authentication is an external collaborator; callers arrive with their
// identity already resolved and pass it in these headers.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-Role"
)

func requestPermission(r *http.Request) models.Permission {
	return models.Permission{
		UserID: r.Header.Get(headerUserID),
		Role:   r.Header.Get(headerRole),
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	perm := requestPermission(r)
	if perm.UserID != "" {
		req.UserID = perm.UserID
		req.Role = perm.Role
	}
	s.logger.Debug("ask request",
		zap.String("query", req.Query), zap.String("user_id", req.UserID), zap.Bool("use_hyde", req.UseHyDE))

	answer, err := s.engine.Answer(r.Context(), req)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "answer generation is currently unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Content == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	if perm := requestPermission(r); perm.UserID != "" && input.OwnerID == "" {
		input.OwnerID = perm.UserID
	}
	doc, err := s.ingestor.Ingest(r.Context(), &input)
	if err != nil {
		s.logger.Error("ingest failed", zap.String("title", input.Title), zap.Error(err))
		s.respondError(w, statusForStoreError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	perm := requestPermission(r)
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	docs, err := s.store.ListDocuments(r.Context(), perm, offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id, requestPermission(r))
	if err != nil {
		// Invisible and missing documents get the same answer.
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	perm := requestPermission(r)
	doc, err := s.store.GetDocument(r.Context(), id, perm)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if !perm.Admin() && doc.OwnerID != perm.UserID {
		s.respondError(w, http.StatusForbidden, "only the owner or an admin may delete a document")
		return
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	userEntries, globalEntries, err := s.cache.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"corpus": st,
		"cache": map[string]int64{
			"user_entries":   userEntries,
			"global_entries": globalEntries,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// statusForStoreError maps store sentinels to HTTP codes on the ingest path.
func statusForStoreError(err error) int {
	switch {
	case errors.Is(err, store.ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, store.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
