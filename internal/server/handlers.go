package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmp1ce/charge-lnd/internal/history"
	"github.com/dmp1ce/charge-lnd/internal/scid"
)

type statusPayload struct {
	RunID      string          `json:"run_id,omitempty"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
	DryRun     bool            `json:"dry_run"`
	Channels   int             `json:"channels"`
	Resolved   int             `json:"resolved"`
	Defaulted  int             `json:"defaulted"`
	Unresolved int             `json:"unresolved"`
	Failed     int             `json:"failed"`
	Applied    int             `json:"applied"`
	Items      []statusChannel `json:"items,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
}

type statusChannel struct {
	ChannelID  string `json:"channel_id"`
	Outcome    string `json:"outcome"`
	PolicyName string `json:"policy_name,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Applied    bool   `json:"applied"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := statusPayload{LastError: s.lastErr}
	if s.lastRun != nil {
		run := s.lastRun
		payload.RunID = run.RunID
		payload.StartedAt = run.StartedAt.Format(time.RFC3339)
		payload.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		payload.DryRun = run.DryRun
		payload.Channels = len(run.Results)
		payload.Resolved = run.Resolved
		payload.Defaulted = run.Defaulted
		payload.Unresolved = run.Unresolved
		payload.Failed = run.Failed
		payload.Applied = run.Applied
		for _, res := range run.Results {
			item := statusChannel{
				ChannelID:  scid.Format(res.Channel.ChanID),
				Outcome:    res.Outcome.String(),
				PolicyName: res.PolicyName,
				Strategy:   res.Strategy,
				Applied:    res.Applied,
			}
			if res.Err != nil {
				item.Error = res.Err.Error()
			}
			payload.Items = append(payload.Items, item)
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "history store not configured")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	rows, err := history.FetchRecent(r.Context(), s.db, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []history.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}
