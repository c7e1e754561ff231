// Command manager runs the league manager process: the single
// orchestrator a league's referees and players register against (spec
// §4.9). It owns the standings, rounds, and match journals and serves
// /mcp, /admin/*, and /ws on one HTTP listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oddeven-league/tournament-system/internal/authtoken"
	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/manager"
	"github.com/oddeven-league/tournament-system/internal/repo"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New("manager", cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	leagueID := getEnv("LEAGUE_ID", "league-1")

	hub := manager.NewHub(logger, originSet(parseOrigins(os.Getenv("DASHBOARD_ALLOWED_ORIGINS"))))

	deps := manager.Deps{
		Cfg:    cfg,
		RPC:    transport.NewClient(cfg.Timeouts.HTTP, cfg.Retry.MaxRetries, cfg.Retry.Base, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.OpenTimeout, cfg.CircuitBreaker.HalfOpenProbes),
		Auth:   authtoken.NewService(cfg.AuthSecret, cfg.TokenExpiry),
		Logger: logger,
		Hub:    hub,
		StandingsRepo: repo.NewStandingsRepo(getEnv("STANDINGS_PATH", "./data/standings.json")),
		RoundsJournal: repo.NewRoundsJournal(getEnv("ROUNDS_PATH", "./data/rounds.json")),
		MatchStore:    repo.NewMatchStore(getEnv("MATCHES_PATH", "./data/matches.json")),
	}
	league := manager.NewLeague(leagueID, deps)

	server := httpx.NewServer(logger, parseOrigins(os.Getenv("DASHBOARD_ALLOWED_ORIGINS")))
	league.RegisterMCPHandlers(server)
	league.RegisterAdminRoutes(server.Mux())

	logger.Event("manager_starting", "league_id", leagueID, "addr", cfg.ListenAddr)
	runAndWait(logger, cfg.ListenAddr, server.Router())
}

func runAndWait(logger *logging.Logger, addr string, handler http.Handler) {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WarnEvent("server_error", "error", err.Error())
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Event("shutdown_signal_received", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WarnEvent("shutdown_failed", "error", err.Error())
			_ = httpServer.Close()
		}
	}
	logger.Event("process_exited")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseOrigins(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{"*"}
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// originSet converts the origins list into the set form Hub.CheckOrigin
// expects, keeping the "*"/allow-all meaning (empty set) consistent with
// httpx.NewServer's []string form.
func originSet(origins []string) map[string]bool {
	if len(origins) == 1 && origins[0] == "*" {
		return nil
	}
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		set[o] = true
	}
	return set
}

