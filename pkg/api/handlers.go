package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"warden/pkg/agent"
	wardenerrors "warden/pkg/errors"
	"warden/pkg/permission"
)

type messageRequest struct {
	Message string `json:"message"`
}

type recordView struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	Result  string `json:"result"`
	Failed  bool   `json:"failed"`
	Warning bool   `json:"warning,omitempty"`
}

type messageResponse struct {
	Text            string       `json:"text"`
	Status          string       `json:"status"`
	Trigger         string       `json:"trigger,omitempty"`
	TruncatedMidTag bool         `json:"truncated_mid_tag,omitempty"`
	TokensUsed      int          `json:"tokens_used"`
	Records         []recordView `json:"records"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.service.ProcessMessage(r.Context(), agentID, req.Message)
	if err != nil {
		switch {
		case wardenerrors.HasCode(err, wardenerrors.ErrCodeReentrancy):
			writeError(w, http.StatusConflict, err.Error())
		case wardenerrors.HasCode(err, wardenerrors.ErrCodeNoWorkspace):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(resp))
}

func toMessageResponse(resp *agent.Response) messageResponse {
	records := make([]recordView, 0, len(resp.Records))
	for _, rec := range resp.Records {
		records = append(records, recordView{
			ID:      rec.ID,
			Kind:    string(rec.Kind),
			Target:  rec.Target,
			Result:  rec.Result,
			Failed:  rec.Failed,
			Warning: rec.Warning,
		})
	}
	return messageResponse{
		Text:            resp.Text,
		Status:          string(resp.Status),
		Trigger:         string(resp.Trigger),
		TruncatedMidTag: resp.TruncatedMidTag,
		TokensUsed:      resp.TokensUsed,
		Records:         records,
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if !s.service.Cancel(agentID) {
		writeError(w, http.StatusNotFound, "no in-flight response for agent "+agentID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	rec, err := s.service.Memory(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	if err := s.service.ClearMemory(r.Context(), agentID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSetPermissions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	var set permission.Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeError(w, http.StatusBadRequest, "invalid permission set: "+err.Error())
		return
	}
	s.service.SetPermissions(agentID, set)
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	set := s.service.Permissions(agentID)
	if set == nil {
		set = permission.Set{}
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := s.store.RecentEvents(r.Context(), agentID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}
