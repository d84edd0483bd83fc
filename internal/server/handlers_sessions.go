package server

import (
	"net/http"
	"strconv"

	"github.com/jonathan/property-analyzer/internal/storage"
)

const (
	defaultSessionLimit = 100
	maxSessionLimit     = 1000
)

// SessionListResponse is the body of GET /api/sessions.
type SessionListResponse struct {
	Sessions []storage.Session `json:"sessions"`
	Count    int               `json:"count"`
}

// DeleteSessionResponse is the body of DELETE /api/sessions/{id}.
type DeleteSessionResponse struct {
	UUID         string `json:"uuid"`
	DeletedFiles int    `json:"deleted_files"`
}

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store == nil {
		s.handleError(w, r, "", &ErrUnavailable{Service: "storage"})
		return false
	}
	return true
}

// handleListSessions lists sessions newest first; ?limit= defaults to 100
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSessionLimit {
			s.handleError(w, r, "", &ErrValidation{Field: "limit", Message: "must be between 1 and 1000"})
			return
		}
		limit = n
	}

	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		s.handleError(w, r, "セッション一覧の取得に失敗しました", err)
		return
	}
	if sessions == nil {
		sessions = []storage.Session{}
	}
	s.jsonResponse(w, http.StatusOK, SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

// handleGetSession returns the stored analysis record of a session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	id := r.PathValue("id")
	record, err := s.store.GetAnalysisResult(r.Context(), id)
	if err != nil {
		s.handleError(w, r, "", err)
		return
	}
	if record == nil {
		s.handleError(w, r, "", &ErrNotFound{Resource: "session", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

// handleDeleteSession removes every artifact of a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	id := r.PathValue("id")
	deleted, err := s.store.DeleteSession(r.Context(), id)
	if err != nil {
		s.handleError(w, r, "", err)
		return
	}
	if deleted == 0 {
		s.handleError(w, r, "", &ErrNotFound{Resource: "session", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, DeleteSessionResponse{UUID: id, DeletedFiles: deleted})
}

// handleStorageStats reports bucket usage
func (s *Server) handleStorageStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.handleError(w, r, "ストレージ統計の取得に失敗しました", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}
