package api

import (
	"net/http"

	"github.com/user/shellpilot/internal/planner"
)

type createSessionRequest struct {
	SessionID string `json:"session_id"`
	Shell     string `json:"shell,omitempty"`
}

type executeRequest struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command"`
}

type controlRequest struct {
	SessionID string `json:"session_id"`
	Char      string `json:"char"`
}

type resizeRequest struct {
	SessionID string `json:"session_id"`
	Rows      int    `json:"rows,omitempty"`
	Cols      int    `json:"cols,omitempty"`
}

type planRequest struct {
	SessionID string `json:"session_id"`
	Goal      string `json:"goal"`
}

type sessionResult struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		jsonError(w, http.StatusBadRequest, "session_id required")
		return
	}

	ok := h.registry.Create(req.SessionID, req.Shell)
	jsonResponse(w, http.StatusOK, sessionResult{Success: ok, SessionID: req.SessionID})
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string][]string{"sessions": h.registry.List()})
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := h.registry.Get(id)
	if !ok {
		jsonError(w, http.StatusNotFound, "session not found")
		return
	}
	jsonResponse(w, http.StatusOK, sess.Info())
}

func (h *handler) closeSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok := h.registry.Close(id)
	jsonResponse(w, http.StatusOK, sessionResult{Success: ok, SessionID: id})
}

func (h *handler) execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Command == "" {
		jsonError(w, http.StatusBadRequest, "session_id and command required")
		return
	}

	if err := planner.VetCommand(req.Command); err != nil {
		riskErr, _ := err.(*planner.RiskError)
		jsonResponse(w, http.StatusForbidden, errorBody{
			Error:    err.Error(),
			Warnings: riskErr.Warnings,
		})
		return
	}

	ok := h.registry.Execute(req.SessionID, req.Command)
	jsonResponse(w, http.StatusOK, struct {
		sessionResult
		Command string `json:"command"`
	}{sessionResult{Success: ok, SessionID: req.SessionID}, req.Command})
}

func (h *handler) sendControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Char == "" {
		jsonError(w, http.StatusBadRequest, "session_id and char required")
		return
	}

	ok := h.registry.SendControl(req.SessionID, req.Char)
	jsonResponse(w, http.StatusOK, struct {
		sessionResult
		Char string `json:"char"`
	}{sessionResult{Success: ok, SessionID: req.SessionID}, req.Char})
}

func (h *handler) resize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		jsonError(w, http.StatusBadRequest, "session_id required")
		return
	}
	rows, cols := req.Rows, req.Cols
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}

	ok := h.registry.Resize(req.SessionID, rows, cols)
	jsonResponse(w, http.StatusOK, struct {
		sessionResult
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	}{sessionResult{Success: ok, SessionID: req.SessionID}, rows, cols})
}

func (h *handler) plan(w http.ResponseWriter, r *http.Request) {
	if h.loop == nil {
		jsonError(w, http.StatusServiceUnavailable, "planning service not configured")
		return
	}

	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Goal == "" {
		jsonError(w, http.StatusBadRequest, "session_id and goal required")
		return
	}

	result := h.loop.ExecuteGoal(r.Context(), req.Goal, req.SessionID)
	jsonResponse(w, http.StatusOK, result)
}
