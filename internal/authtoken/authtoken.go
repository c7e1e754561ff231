// Package authtoken issues and validates the signed bearer tokens that
// scope every non-registration league.v2 message to (agent_id,
// league_id, role) — spec §4.2. It replaces the source material's
// opaque tok_<hash> format with a JWT, per the REDESIGN FLAGS decision
// to retire the older code path.
package authtoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// Claims is the decoded, validated contents of a league.v2 bearer token.
type Claims struct {
	AgentID  string
	LeagueID string
	Role     string
	IssuedAt time.Time
	Expiry   time.Time
	JTI      string
}

// Service issues and validates tokens signed with a single
// process-wide secret (spec §4.2/§6 "Auth: JWT-style secret from
// environment").
type Service struct {
	secret []byte
	expiry time.Duration
}

func NewService(secret []byte, expiry time.Duration) *Service {
	return &Service{secret: secret, expiry: expiry}
}

// Issue mints a token carrying {sub, league_id, role, iat, exp, jti}.
func (s *Service) Issue(agentID, leagueID, role string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":       agentID,
		"league_id": leagueID,
		"role":      role,
		"iat":       now.Unix(),
		"exp":       now.Add(s.expiry).Unix(),
		"jti":       uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks signature and expiry, then — when the caller
// supplies expectations — that the claims match the identity the
// receiver expects (spec §4.2 invariant). An empty token is always
// AUTH_TOKEN_MISSING; any other failure is AUTH_TOKEN_INVALID.
func (s *Service) Validate(token string, expectedAgentID, expectedLeagueID string) (Claims, error) {
	if token == "" {
		return Claims{}, protocol.ErrAuthTokenMissing
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, protocol.ErrAuthTokenInvalid
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, protocol.ErrAuthTokenInvalid
	}

	out, err := toClaims(claims)
	if err != nil {
		return Claims{}, protocol.ErrAuthTokenInvalid
	}

	if expectedAgentID != "" && out.AgentID != expectedAgentID {
		return Claims{}, protocol.ErrAuthTokenInvalid
	}
	if expectedLeagueID != "" && out.LeagueID != expectedLeagueID {
		return Claims{}, protocol.ErrAuthTokenInvalid
	}
	return out, nil
}

func toClaims(m jwt.MapClaims) (Claims, error) {
	sub, _ := m["sub"].(string)
	leagueID, _ := m["league_id"].(string)
	role, _ := m["role"].(string)
	jti, _ := m["jti"].(string)
	if sub == "" || role == "" {
		return Claims{}, fmt.Errorf("token missing required claims")
	}

	iatF, _ := m["iat"].(float64)
	expF, _ := m["exp"].(float64)

	return Claims{
		AgentID:  sub,
		LeagueID: leagueID,
		Role:     role,
		IssuedAt: time.Unix(int64(iatF), 0).UTC(),
		Expiry:   time.Unix(int64(expF), 0).UTC(),
		JTI:      jti,
	}, nil
}
