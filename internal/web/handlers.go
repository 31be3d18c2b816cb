package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	logx "streamrec/pkg/logx"
)

const defaultEventLimit = 50

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.deps.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}
	if s.deps.Bus != nil {
		resp["events_dropped"] = s.deps.Bus.Dropped()
	}
	if s.deps.Checkers != nil {
		if down := s.deps.Checkers.Unavailable(); len(down) > 0 {
			resp["status"] = "degraded"
			resp["unavailable"] = down
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) checkers(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Checkers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"workers": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workers":     s.deps.Checkers.Snapshot(),
		"unavailable": s.deps.Checkers.Unavailable(),
	})
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.deps.Events.RecentLive(r.Context(), limit)
	if err != nil {
		s.log.Warn("list events failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "list events failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recs})
}

func (s *Server) notifications(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Notifications == nil {
		writeError(w, http.StatusServiceUnavailable, "notifier disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": s.deps.Notifications.History()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
