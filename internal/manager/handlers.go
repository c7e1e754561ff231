package manager

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// RegisterMCPHandlers wires the league's inbound league.v2 methods onto
// an httpx.Server (spec §6 method catalogue, manager-facing subset).
func (l *League) RegisterMCPHandlers(server *httpx.Server) {
	server.Handle(protocol.MethodRegisterReferee, l.HandleRefereeRegister)
	server.Handle(protocol.MethodRegisterPlayer, l.HandlePlayerRegister)
	server.Handle(protocol.MethodReportMatchResult, l.HandleMatchResultReport)
}

// RegisterAdminRoutes mounts the thin operator surface alongside /mcp:
// starting the league and inspecting standings/status, plus the
// dashboard websocket the Hub drives (spec §4.9 is silent on an admin
// surface; this is the ambient operational layer every agent process
// needs to be run in practice).
func (l *League) RegisterAdminRoutes(mux chi.Router) {
	mux.Post("/admin/start", l.requireAdmin(l.handleStartLeague))
	mux.Get("/admin/standings", l.requireAdmin(l.handleStatus))
	mux.Get("/ws", l.hub.ServeWS)
}

func (l *League) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.AdminToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token != l.cfg.AdminToken {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (l *League) handleStartLeague(w http.ResponseWriter, r *http.Request) {
	if err := l.StartLeague(r.Context()); err != nil {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

func (l *League) handleStatus(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ranked interface{}
	if l.table != nil {
		ranked = l.table.Rank()
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"league_id":     l.ID,
		"status":        l.status,
		"players":       l.registry.PlayerCount(),
		"referees":      len(l.registry.Referees()),
		"current_round": l.currentRoundIdx,
		"total_rounds":  len(l.rounds),
		"standings":     ranked,
	})
}
