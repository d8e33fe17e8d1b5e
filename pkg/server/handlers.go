package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/itohio/gardenmeter/pkg/measurement"
)

type historyItem struct {
	Timestamp string `json:"timestamp"`
	measurement.View
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboard)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.state.Get().View())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	ms, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read history", "error", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}

	items := make([]historyItem, 0, len(ms))
	for _, m := range ms {
		items = append(items, historyItem{Timestamp: m.Timestamp, View: m.View()})
	}
	s.writeJSON(w, items)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Download requested")

	rc, size, err := s.log.Export()
	if err != nil {
		s.logger.Error("Log file unavailable", "error", err)
		s.logEntries()
		http.Error(w, notFoundFile, http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.fileName))

	// The loop may append while streaming; send only the rows counted in size.
	n, err := io.Copy(w, io.LimitReader(rc, size))
	if err != nil {
		s.logger.Error("Download interrupted", "written", n, "error", err)
		return
	}
	s.logger.Info("Download complete", "bytes", n)
}

// logEntries reports the contents of the storage directory.
func (s *Server) logEntries() {
	entries, err := s.log.ListEntries()
	if err != nil {
		s.logger.Error("Failed to list storage", "error", err)
		return
	}
	for _, e := range entries {
		s.logger.Info("Stored file", "name", e.Name, "size", e.Size)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{Status: "ok"}
	if s.health != nil {
		h = s.health()
	}
	s.writeJSON(w, h)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, notFoundPage, http.StatusNotFound)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}
