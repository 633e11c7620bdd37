package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"markestedt/clipshare/config"
	"markestedt/clipshare/hotkey"
	"markestedt/clipshare/storage"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleConfig handles GET and PUT requests for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if s.opts.Config == nil {
		http.Error(w, "Configuration unavailable", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.opts.Config())
	case http.MethodPut:
		s.handlePutConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePutConfig applies a partial update. Omitted fields keep their value.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	if s.opts.ApplyConfig == nil {
		http.Error(w, "Configuration is read-only", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Mode          *string `json:"mode"`
		SendPort      *string `json:"send_port"`
		RecvPort      *string `json:"recv_port"`
		Baud          *int    `json:"baud"`
		DelayMs       *int    `json:"delay_ms"`
		Hotkey        *string `json:"hotkey"`
		Notifications *bool   `json:"notifications"`
		PreviewChars  *int    `json:"preview_chars"`
		Sound         *bool   `json:"sound"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Mode != nil && !config.Mode(strings.ToLower(*req.Mode)).Valid() {
		http.Error(w, "Invalid mode", http.StatusBadRequest)
		return
	}
	if req.Hotkey != nil {
		if _, err := hotkey.Parse(*req.Hotkey); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	cfg := *s.opts.Config()
	config.Overrides{
		Mode:          req.Mode,
		SendPort:      req.SendPort,
		RecvPort:      req.RecvPort,
		Baud:          req.Baud,
		DelayMs:       req.DelayMs,
		Hotkey:        req.Hotkey,
		Notifications: req.Notifications,
		PreviewChars:  req.PreviewChars,
	}.Apply(&cfg)
	if req.Sound != nil {
		cfg.Sound = *req.Sound
	}
	cfg.Normalize()

	if err := s.opts.ApplyConfig(&cfg); err != nil {
		s.logger.Error("Failed to apply config", "error", err)
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "success"})
}

// daysParam reads ?days=N, defaulting to 7.
func daysParam(r *http.Request) int {
	days := 7
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
		days = d
	}
	return days
}

// handleStats returns statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.History == nil {
		http.Error(w, "History is disabled", http.StatusNotFound)
		return
	}

	days := daysParam(r)

	overall, err := s.opts.History.GetOverallStats(days)
	if err != nil {
		s.logger.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.opts.History.GetDailyStats(days)
	if err != nil {
		s.logger.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	ports, err := s.opts.History.GetPortStats(days)
	if err != nil {
		s.logger.Error("Failed to get port stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"days":    days,
		"overall": overall,
		"daily":   daily,
		"ports":   ports,
	})
}

// handleHistory handles GET and DELETE requests for transfer history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		http.Error(w, "History is disabled", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetHistory(w, r)
	case http.MethodDelete:
		s.handleDeleteHistory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetHistory returns paginated transfer history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0

	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	transfers, err := s.opts.History.GetTransfers(limit, offset)
	if err != nil {
		s.logger.Error("Failed to get transfers", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	if transfers == nil {
		transfers = []storage.Transfer{}
	}

	total, err := s.opts.History.GetTransferCount()
	if err != nil {
		s.logger.Error("Failed to get transfer count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"transfers": transfers,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// handleDeleteHistory deletes a transfer by ID (/api/history/123)
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if idStr == "" || idStr == r.URL.Path {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := s.opts.History.DeleteTransfer(id); err != nil {
		if errors.Is(err, storage.ErrTransferNotFound) {
			http.Error(w, "Transfer not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to delete transfer", "error", err, "id", id)
		http.Error(w, "Failed to delete transfer", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "success"})
}

// handleStatus returns the live session status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var status Status
	if s.opts.Status != nil {
		status = s.opts.Status()
	}
	writeJSON(w, status)
}
