// Command player runs one player process: it registers with the
// league manager, then answers game invitations and parity calls
// according to a pluggable Strategy (spec §4.10).
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

	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/player"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/repo"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	playerID := getEnv("PLAYER_ID", "")
	displayName := getEnv("PLAYER_DISPLAY_NAME", playerID)
	contactEndpoint := getEnv("PLAYER_CONTACT_ENDPOINT", "")
	if contactEndpoint == "" {
		fmt.Fprintln(os.Stderr, "PLAYER_CONTACT_ENDPOINT environment variable is not set")
		os.Exit(1)
	}
	gameTypes := splitCSV(getEnv("PLAYER_GAME_TYPES", cfg.League.GameType))
	historyPath := getEnv("PLAYER_HISTORY_PATH", fmt.Sprintf("./data/history-%s.json", sanitizeID(playerID)))

	logger, err := logging.New("player", cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	strategy := newStrategy(getEnv("PLAYER_STRATEGY", "random"))
	history := repo.NewPlayerHistoryRepo(historyPath)
	rpc := transport.NewClient(cfg.Timeouts.HTTP, cfg.Retry.MaxRetries, cfg.Retry.Base, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.OpenTimeout, cfg.CircuitBreaker.HalfOpenProbes)

	agent := player.NewAgent(playerID, contactEndpoint, displayName, gameTypes, strategy, history, cfg, rpc, logger)

	if err := registerWithRetry(context.Background(), agent, logger); err != nil {
		logger.WarnEvent("player_registration_failed", "error", err.Error())
		os.Exit(1)
	}

	server := httpx.NewServer(logger, []string{"*"})
	agent.RegisterHandlers(server)

	logger.Event("player_starting", "player_id", agent.PlayerID, "addr", cfg.ListenAddr)
	runAndWait(logger, cfg.ListenAddr, server.Router())
}

func newStrategy(name string) player.Strategy {
	switch strings.ToLower(name) {
	case "always_even":
		return player.AlwaysEvenStrategy{}
	case "pattern":
		return player.PatternStrategy{Default: protocol.ParityEven}
	default:
		return player.NewRandomStrategy(time.Now().UnixNano())
	}
}

// registerWithRetry attempts LEAGUE_REGISTER_REQUEST against the
// manager a few times with a fixed pause, since player processes are
// typically launched alongside a manager that is still starting up.
func registerWithRetry(ctx context.Context, agent *player.Agent, logger *logging.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := agent.Register(ctx); err == nil {
			return nil
		} else {
			lastErr = err
			logger.WarnEvent("player_register_attempt_failed", "attempt", attempt, "error", err.Error())
		}
		time.Sleep(2 * time.Second)
	}
	return lastErr
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

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sanitizeID(id string) string {
	if id == "" {
		return "anon"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
