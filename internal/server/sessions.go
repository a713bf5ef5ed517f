package server

import "net/http"

// handleCreateSession handles POST /api/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusCreated, sessionResponse{SessionID: s.svc.CreateSession()})
}

// handleSessionInfo handles GET /api/sessions/{id}.
func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.SessionInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// handleClearSession handles POST /api/sessions/{id}/clear. Messages and the
// active set are dropped; documents stay cached.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearSession(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ackResponse{OK: true})
}

// handleDeactivate handles DELETE /api/sessions/{id}/documents/{doc}.
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Deactivate(r.PathValue("id"), r.PathValue("doc"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ackResponse{OK: true, Removed: &removed})
}
