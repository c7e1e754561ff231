// Command referee runs one referee process: it registers with the
// league manager, then waits for ROUND_ANNOUNCEMENT calls and runs a
// Match goroutine for every fixture assigned to its own endpoint (spec
// §4.2, §4.6).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/oddeven-league/tournament-system/internal/clock"
	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/referee"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	refereeID := getEnv("REFEREE_ID", "")
	contactEndpoint := getEnv("REFEREE_CONTACT_ENDPOINT", "")
	if contactEndpoint == "" {
		fmt.Fprintln(os.Stderr, "REFEREE_CONTACT_ENDPOINT environment variable is not set")
		os.Exit(1)
	}
	gameTypes := splitCSV(getEnv("REFEREE_GAME_TYPES", cfg.League.GameType))
	maxConcurrent := getEnvInt("REFEREE_MAX_CONCURRENT", 4)
	seed := int64(getEnvInt("REFEREE_DRAW_SEED", int(time.Now().UnixNano()%1_000_000)))

	logger, err := logging.New("referee", cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	rpc := transport.NewClient(cfg.Timeouts.HTTP, cfg.Retry.MaxRetries, cfg.Retry.Base, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.OpenTimeout, cfg.CircuitBreaker.HalfOpenProbes)
	agent := referee.NewAgent(refereeID, contactEndpoint, gameTypes, maxConcurrent, cfg, rpc, logger, clock.Real{}, seed)

	if err := registerWithRetry(context.Background(), agent, logger); err != nil {
		logger.WarnEvent("referee_registration_failed", "error", err.Error())
		os.Exit(1)
	}

	server := httpx.NewServer(logger, []string{"*"})
	agent.RegisterHandlers(server)

	logger.Event("referee_starting", "referee_id", agent.RefereeID, "addr", cfg.ListenAddr)
	runAndWait(logger, cfg.ListenAddr, server.Router())
}

// registerWithRetry attempts REFEREE_REGISTER_REQUEST against the
// manager a few times with a fixed pause, since the manager may still
// be starting up when referee processes are launched alongside it.
func registerWithRetry(ctx context.Context, agent *referee.Agent, logger *logging.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := agent.Register(ctx); err == nil {
			return nil
		} else {
			lastErr = err
			logger.WarnEvent("referee_register_attempt_failed", "attempt", attempt, "error", err.Error())
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

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
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
