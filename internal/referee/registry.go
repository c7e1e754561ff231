package referee

import (
	"context"
	"fmt"
	"sync"

	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// Registry tracks every match currently running in this referee
// process and routes inbound player messages to the right one. A
// referee's max_concurrent_matches (spec §6 referee_meta) is enforced
// by the manager at assignment time, not here.
type Registry struct {
	mu      sync.Mutex
	matches map[string]*Match
}

func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*Match)}
}

// Start registers a new Match and runs it in its own goroutine.
func (r *Registry) Start(ctx context.Context, matchID, roundID, leagueID, gameType string, a, b SlotSpec, deps Deps) *Match {
	match := NewMatch(matchID, roundID, leagueID, gameType, a, b, deps)

	r.mu.Lock()
	r.matches[matchID] = match
	r.mu.Unlock()

	go func() {
		if err := match.Run(ctx); err != nil {
			deps.Logger.WarnEvent("match_run_failed", "match_id", matchID, "error", err.Error())
		}
		r.mu.Lock()
		delete(r.matches, matchID)
		r.mu.Unlock()
	}()
	return match
}

func (r *Registry) lookup(matchID string) (*Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// HandleGameJoinAck is the httpx.Handler for inbound GAME_JOIN_ACK
// calls from players.
func (r *Registry) HandleGameJoinAck(_ context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	ack, ok := payload.(protocol.GameJoinAck)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("referee: unexpected payload type for GAME_JOIN_ACK")
	}
	match, ok := r.lookup(ack.MatchID)
	if !ok {
		return protocol.Envelope{}, nil, protocol.NewRPCError(protocol.ErrCodeMissingField, "unknown match_id: "+ack.MatchID)
	}
	_, playerID, err := protocol.ParseSender(env.Sender)
	if err != nil {
		return protocol.Envelope{}, nil, err
	}
	match.HandleJoinAck(playerID, ack.Accept)
	return env, ack, nil
}

// HandleChooseParityResponse is the httpx.Handler for inbound
// CHOOSE_PARITY_RESPONSE calls from players.
func (r *Registry) HandleChooseParityResponse(_ context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	resp, ok := payload.(protocol.ChooseParityResponse)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("referee: unexpected payload type for CHOOSE_PARITY_RESPONSE")
	}
	match, ok := r.lookup(resp.MatchID)
	if !ok {
		return protocol.Envelope{}, nil, protocol.NewRPCError(protocol.ErrCodeMissingField, "unknown match_id: "+resp.MatchID)
	}
	_, playerID, err := protocol.ParseSender(env.Sender)
	if err != nil {
		return protocol.Envelope{}, nil, err
	}
	match.HandleChoice(playerID, resp.ParityChoice)
	return env, resp, nil
}

// RegisterHandlers wires this registry's inbound message handling onto
// an httpx.Server (spec §5 "the referee agent exposes /mcp too").
func (r *Registry) RegisterHandlers(server *httpx.Server) {
	server.Handle(protocol.MethodGameJoinAck, r.HandleGameJoinAck)
	server.Handle(protocol.MethodChooseParityResponse, r.HandleChooseParityResponse)
}
