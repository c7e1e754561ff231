package player

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/repo"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

// matchContext is what the agent remembers about a match in progress,
// just enough to reply and to file a history entry once it ends (spec
// §4.10 "track (match_id, role, opponent_id)").
type matchContext struct {
	opponentID      string
	role            string
	refereeEndpoint string
}

// Agent is one player process: it registers with the league manager,
// then answers the seven inbound message types a player receives
// (spec §4.10).
type Agent struct {
	PlayerID        string
	ContactEndpoint string
	DisplayName     string
	GameTypes       []string

	cfg      *config.Config
	rpc      *transport.Client
	logger   *logging.Logger
	strategy Strategy
	history  *repo.PlayerHistoryRepo

	token    string
	leagueID string

	mu      sync.Mutex
	matches map[string]matchContext
}

func NewAgent(playerID, contactEndpoint, displayName string, gameTypes []string, strategy Strategy, history *repo.PlayerHistoryRepo, cfg *config.Config, rpc *transport.Client, logger *logging.Logger) *Agent {
	return &Agent{
		PlayerID:        playerID,
		ContactEndpoint: contactEndpoint,
		DisplayName:     displayName,
		GameTypes:       gameTypes,
		cfg:             cfg,
		rpc:             rpc,
		logger:          logger,
		strategy:        strategy,
		history:         history,
		matches:         make(map[string]matchContext),
	}
}

// Register sends LEAGUE_REGISTER_REQUEST and retains the returned
// token (spec §4.10 "on startup").
func (a *Agent) Register(ctx context.Context) error {
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    protocol.MsgLeagueRegisterRequest,
		Sender:         protocol.FormatSender(protocol.RolePlayer, a.PlayerID),
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: a.PlayerID + "-register",
		AuthToken:      "",
	}
	payload := protocol.LeagueRegisterRequest{
		PlayerID: a.PlayerID,
		PlayerMeta: protocol.PlayerMeta{
			DisplayName:     a.DisplayName,
			Version:         "1.0",
			GameTypes:       a.GameTypes,
			ContactEndpoint: a.ContactEndpoint,
		},
	}
	params, err := encodeParams(env, payload)
	if err != nil {
		return fmt.Errorf("player: encode register request: %w", err)
	}
	raw, err := a.rpc.Call(ctx, a.cfg.ManagerEndpoint, protocol.MethodRegisterPlayer, params, a.cfg.Timeouts.Generic)
	if err != nil {
		return fmt.Errorf("player: register_player call failed: %w", err)
	}
	var resp protocol.LeagueRegisterResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("player: decode register response: %w", err)
	}
	if resp.Status != protocol.StatusAccepted {
		return fmt.Errorf("player: registration rejected: %s", resp.RejectionReason)
	}
	a.token = resp.AuthToken
	a.leagueID = resp.LeagueID
	a.logger.Event("player_registered", "player_id", a.PlayerID, "league_id", a.leagueID)
	return nil
}

// HandleGameInvitation answers a GAME_INVITATION. The synchronous RPC
// reply is a courtesy only; the message that actually counts is the
// GAME_JOIN_ACK this player places as its own outbound call back to the
// referee's contact endpoint, since spec §6 marks that message
// player->referee (message 8), not a reply in the referee's own call.
func (a *Agent) HandleGameInvitation(_ context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	inv, ok := payload.(protocol.GameInvitation)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("player: unexpected payload type for GAME_INVITATION")
	}

	a.mu.Lock()
	a.matches[inv.MatchID] = matchContext{opponentID: inv.OpponentID, role: inv.RoleInMatch, refereeEndpoint: inv.RefereeEndpoint}
	a.mu.Unlock()

	ack := protocol.GameJoinAck{
		MatchID:          inv.MatchID,
		Accept:           true,
		ArrivalTimestamp: protocol.NowTimestamp(),
	}
	go a.sendToReferee(inv.MatchID, inv.RefereeEndpoint, protocol.MethodGameJoinAck, protocol.MsgGameJoinAck, ack)
	return a.responseEnvelope(env, protocol.MsgGameJoinAck), ack, nil
}

// HandleChooseParityCall consults the strategy and places
// CHOOSE_PARITY_RESPONSE as an outbound call back to the referee (spec
// §4.10, §6 message 9/10, same player->referee direction as the join ack).
func (a *Agent) HandleChooseParityCall(_ context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	call, ok := payload.(protocol.ChooseParityCall)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("player: unexpected payload type for CHOOSE_PARITY_CALL")
	}

	a.mu.Lock()
	mctx := a.matches[call.MatchID]
	a.mu.Unlock()

	past, err := a.history.AgainstOpponent(call.Context.OpponentID)
	if err != nil {
		a.logger.WarnEvent("history_read_failed", "error", err.Error())
	}
	choice := a.strategy.Choose(call.Context.OpponentID, past)

	resp := protocol.ChooseParityResponse{MatchID: call.MatchID, ParityChoice: choice}
	go a.sendToReferee(call.MatchID, mctx.refereeEndpoint, protocol.MethodChooseParityResponse, protocol.MsgChooseParityResponse, resp)
	return a.responseEnvelope(env, protocol.MsgChooseParityResponse), resp, nil
}

// sendToReferee places this player's own outbound call to the
// referee running a match, detached from the inbound request's
// lifetime since the handler that triggered it has already returned.
func (a *Agent) sendToReferee(matchID, refereeEndpoint, method, messageType string, payload interface{}) {
	if refereeEndpoint == "" {
		a.logger.WarnEvent("referee_endpoint_unknown", "match_id", matchID, "method", method)
		return
	}
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    messageType,
		Sender:         protocol.FormatSender(protocol.RolePlayer, a.PlayerID),
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: matchID,
		AuthToken:      a.token,
	}
	params, err := encodeParams(env, payload)
	if err != nil {
		a.logger.WarnEvent("encode_failed", "method", method, "error", err.Error())
		return
	}
	if _, err := a.rpc.Call(context.Background(), refereeEndpoint, method, params, a.cfg.Timeouts.Generic); err != nil {
		a.logger.WarnEvent("referee_call_failed", "match_id", matchID, "method", method, "error", err.Error())
	}
}

// HandleGameOver appends the finished match to this player's own
// history log and forgets the in-flight match context (spec §4.10).
func (a *Agent) HandleGameOver(_ context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	over, ok := payload.(protocol.GameOver)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("player: unexpected payload type for GAME_OVER")
	}

	a.mu.Lock()
	mctx, known := a.matches[over.MatchID]
	delete(a.matches, over.MatchID)
	a.mu.Unlock()

	if known {
		entry := repo.HistoryEntry{
			MatchID:    over.MatchID,
			OpponentID: mctx.opponentID,
			Result:     over.GameResult.Status,
		}
		if over.GameResult.Status == protocol.ResultWin && over.GameResult.WinnerPlayerID != a.PlayerID {
			entry.Result = "LOSS"
		}
		if over.GameResult.Choices != nil {
			entry.OwnChoice = over.GameResult.Choices[a.PlayerID]
			entry.OpponentChoice = over.GameResult.Choices[mctx.opponentID]
		}
		if err := a.history.Append(entry); err != nil {
			a.logger.WarnEvent("history_append_failed", "match_id", over.MatchID, "error", err.Error())
		}
	}
	return a.responseEnvelope(env, protocol.MsgGameOver), over, nil
}

// HandleInformational answers the four broadcast-only message types
// (round announcement, standings update, round completed, league
// completed) with
// a plain acknowledging echo; no action is required of the player
// beyond observing them (spec §4.10 "informational").
func (a *Agent) HandleInformational(_ context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	return env, payload, nil
}

func (a *Agent) responseEnvelope(req protocol.Envelope, messageType string) protocol.Envelope {
	return protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    messageType,
		Sender:         protocol.FormatSender(protocol.RolePlayer, a.PlayerID),
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: req.ConversationID,
		AuthToken:      a.token,
	}
}

// RegisterHandlers wires this agent's inbound message handling onto an
// httpx.Server (spec §4.10 "seven message types").
func (a *Agent) RegisterHandlers(server *httpx.Server) {
	server.Handle(protocol.MethodGameInvitation, a.HandleGameInvitation)
	server.Handle(protocol.MethodChooseParityCall, a.HandleChooseParityCall)
	server.Handle(protocol.MethodGameOver, a.HandleGameOver)
	server.Handle(protocol.MethodNotifyRound, a.HandleInformational)
	server.Handle(protocol.MethodNotifyRoundCompleted, a.HandleInformational)
	server.Handle(protocol.MethodNotifyLeagueCompleted, a.HandleInformational)
	server.Handle(protocol.MethodNotifyStandingsUpdate, a.HandleInformational)
}

func encodeParams(env protocol.Envelope, payload interface{}) (map[string]interface{}, error) {
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		return nil, err
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}
