// Package config loads the league.v2 runtime configuration once at
// process start into an immutable record, passed explicitly into every
// component that needs it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Timeouts holds the per-operation deadlines from spec §6.
type Timeouts struct {
	JoinAck time.Duration
	Move    time.Duration
	Generic time.Duration
	HTTP    time.Duration
}

// Retry holds the transport client's bounded-retry policy from spec §4.3.
type Retry struct {
	MaxRetries int
	Base       time.Duration
}

// CircuitBreaker holds the per-endpoint breaker tunables from spec §4.3.
type CircuitBreaker struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenProbes   int
}

// Scoring holds the league's point weights from spec §3/§4.7.
type Scoring struct {
	WinPoints           int
	DrawPoints           int
	LossPoints           int
	TechnicalLossPoints  int
}

// League holds the league-wide, immutable-after-start configuration
// from spec §3.
type League struct {
	MinPlayers      int
	MaxPlayers      int
	NumberRangeLo   int
	NumberRangeHi   int
	DrawOnBothWrong bool
	GameType        string
}

// Config is the immutable configuration record shared by every agent
// process. It is built once in main() and passed by constructor
// injection; it is never a package-level singleton (REDESIGN FLAGS).
type Config struct {
	Protocol string

	ManagerEndpoint string
	ListenAddr      string

	Timeouts       Timeouts
	Retry          Retry
	CircuitBreaker CircuitBreaker
	Scoring        Scoring
	League         League

	AuthSecret    []byte
	TokenExpiry   time.Duration

	LogPath string

	AdminToken string
}

// Load reads configuration from environment variables, optionally
// populated from a ".env" file (missing file is not fatal — mirrors
// the teacher's config.Load()).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Protocol:        "league.v2",
		ManagerEndpoint: getEnv("LEAGUE_MANAGER_ENDPOINT", "http://127.0.0.1:8000/mcp"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8000"),
		Timeouts: Timeouts{
			JoinAck: getEnvDuration("TIMEOUT_JOIN_ACK", 5*time.Second),
			Move:    getEnvDuration("TIMEOUT_MOVE", 30*time.Second),
			Generic: getEnvDuration("TIMEOUT_GENERIC", 10*time.Second),
			HTTP:    getEnvDuration("TIMEOUT_HTTP", 5*time.Second),
		},
		Retry: Retry{
			MaxRetries: getEnvInt("RETRY_MAX_RETRIES", 3),
			Base:       getEnvDuration("RETRY_BASE", 1*time.Second),
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: getEnvInt("CB_FAILURE_THRESHOLD", 5),
			OpenTimeout:      getEnvDuration("CB_OPEN_TIMEOUT", 30*time.Second),
			HalfOpenProbes:   1,
		},
		Scoring: Scoring{
			WinPoints:           getEnvInt("SCORE_WIN", 3),
			DrawPoints:          getEnvInt("SCORE_DRAW", 1),
			LossPoints:          getEnvInt("SCORE_LOSS", 0),
			TechnicalLossPoints: getEnvInt("SCORE_TECH_LOSS", 0),
		},
		League: League{
			MinPlayers:      getEnvInt("LEAGUE_MIN_PLAYERS", 2),
			MaxPlayers:      getEnvInt("LEAGUE_MAX_PLAYERS", 64),
			NumberRangeLo:   getEnvInt("LEAGUE_NUMBER_RANGE_LO", 0),
			NumberRangeHi:   getEnvInt("LEAGUE_NUMBER_RANGE_HI", 99),
			DrawOnBothWrong: getEnvBool("LEAGUE_DRAW_ON_BOTH_WRONG", true),
			GameType:        getEnv("LEAGUE_GAME_TYPE", "even_odd"),
		},
		TokenExpiry: getEnvDuration("AUTH_TOKEN_EXPIRY", 24*time.Hour),
		LogPath:     getEnv("LOG_PATH", "./league.log.jsonl"),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),
	}

	secret := os.Getenv("AUTH_SECRET")
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("AUTH_SECRET environment variable is not set")
	}
	cfg.AuthSecret = []byte(secret)

	if cfg.League.MinPlayers < 2 {
		return nil, fmt.Errorf("LEAGUE_MIN_PLAYERS must be at least 2, got %d", cfg.League.MinPlayers)
	}
	if cfg.League.MaxPlayers < cfg.League.MinPlayers {
		return nil, fmt.Errorf("LEAGUE_MAX_PLAYERS (%d) must be >= LEAGUE_MIN_PLAYERS (%d)", cfg.League.MaxPlayers, cfg.League.MinPlayers)
	}
	if cfg.League.NumberRangeHi < cfg.League.NumberRangeLo {
		return nil, fmt.Errorf("LEAGUE_NUMBER_RANGE_HI must be >= LEAGUE_NUMBER_RANGE_LO")
	}

	return cfg, nil
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

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
