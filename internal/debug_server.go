// Package internal hosts the operational debug surface. It is not part of
// the client protocol and should only be exposed on private interfaces.
package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"lecture-chat/domain"
	"lecture-chat/observability"
	"lecture-chat/repositories"
)

// DebugServer exposes engine gauges and the persisted message history.
// History reads go straight to BadgerDB and never touch a room actor.
type DebugServer struct {
	log        *slog.Logger
	monitor    *observability.Monitor
	repository repositories.IMessageRepository
}

func NewDebugServer(log *slog.Logger, monitor *observability.Monitor,
	repository repositories.IMessageRepository) *DebugServer {
	return &DebugServer{log: log, monitor: monitor, repository: repository}
}

// Start serves on the given port in the background.
func (s *DebugServer) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/history", s.handleHistory)

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		s.log.Info("Debug server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			s.log.Warn("Debug server stopped", "error", err)
		}
	}()
}

func (s *DebugServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.monitor.Stats())
}

func (s *DebugServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "room query parameter is required", http.StatusBadRequest)
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := s.repository.GetMessages(domain.RoomID(room), cursor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"messages": messages,
		"cursor":   next,
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
