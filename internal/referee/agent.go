package referee

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oddeven-league/tournament-system/internal/clock"
	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/game"
	"github.com/oddeven-league/tournament-system/internal/httpx"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

// decodeResult unmarshals a JSON-RPC "result" into v, a registration
// response payload that rides back without its own envelope.
func decodeResult(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("referee: decode result: %w", err)
	}
	return nil
}

// Agent is one referee process: it registers with the league manager,
// then spawns a Match for every fixture the manager assigns to its own
// endpoint (spec §4.2, §4.6).
type Agent struct {
	RefereeID       string
	ContactEndpoint string
	GameTypes       []string
	MaxConcurrent   int

	cfg      *config.Config
	rpc      *transport.Client
	logger   *logging.Logger
	drawer   *game.Drawer
	clock    clock.Clock
	registry *Registry

	token    string
	leagueID string
}

func NewAgent(refereeID, contactEndpoint string, gameTypes []string, maxConcurrent int, cfg *config.Config, rpc *transport.Client, logger *logging.Logger, cl clock.Clock, seed int64) *Agent {
	return &Agent{
		RefereeID:       refereeID,
		ContactEndpoint: contactEndpoint,
		GameTypes:       gameTypes,
		MaxConcurrent:   maxConcurrent,
		cfg:             cfg,
		rpc:             rpc,
		logger:          logger,
		drawer:          game.NewDrawer(seed),
		clock:           cl,
		registry:        NewRegistry(),
	}
}

// Register sends REFEREE_REGISTER_REQUEST to the league manager and
// stores the bearer token it is issued (spec §4.2).
func (a *Agent) Register(ctx context.Context) error {
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    protocol.MsgRefereeRegisterRequest,
		Sender:         protocol.FormatSender(protocol.RoleReferee, a.RefereeID),
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: a.RefereeID + "-register",
		AuthToken:      "",
	}
	payload := protocol.RefereeRegisterRequest{
		RefereeID: a.RefereeID,
		RefereeMeta: protocol.RefereeMeta{
			DisplayName:          a.RefereeID,
			Version:              "1.0",
			GameTypes:            a.GameTypes,
			ContactEndpoint:      a.ContactEndpoint,
			MaxConcurrentMatches: a.MaxConcurrent,
		},
	}
	params, err := encodeParams(env, payload)
	if err != nil {
		return fmt.Errorf("referee: encode register request: %w", err)
	}
	raw, err := a.rpc.Call(ctx, a.cfg.ManagerEndpoint, protocol.MethodRegisterReferee, params, a.cfg.Timeouts.Generic)
	if err != nil {
		return fmt.Errorf("referee: register_referee call failed: %w", err)
	}

	var resp protocol.RefereeRegisterResponse
	if err := decodeResult(raw, &resp); err != nil {
		return err
	}
	if resp.Status != protocol.StatusAccepted {
		return fmt.Errorf("referee: registration rejected: %s", resp.RejectionReason)
	}
	a.token = resp.AuthToken
	a.leagueID = resp.LeagueID
	a.logger.Event("referee_registered", "referee_id", a.RefereeID, "league_id", a.leagueID)
	return nil
}

// HandleRoundAnnouncement is the httpx.Handler for inbound
// ROUND_ANNOUNCEMENT calls, filtered to the fixtures this referee
// itself is assigned to run.
func (a *Agent) HandleRoundAnnouncement(ctx context.Context, env protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	ann, ok := payload.(protocol.RoundAnnouncement)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("referee: unexpected payload type for ROUND_ANNOUNCEMENT")
	}
	deps := Deps{
		RPC:             a.rpc,
		Drawer:          a.drawer,
		Clock:           a.clock,
		Logger:          a.logger,
		Cfg:             a.cfg,
		Issue:           a.issueToken,
		Sender:          protocol.FormatSender(protocol.RoleReferee, a.RefereeID),
		ContactEndpoint: a.ContactEndpoint,
	}
	for _, fixture := range ann.Matches {
		if fixture.RefereeEndpoint != a.ContactEndpoint {
			continue
		}
		a.registry.Start(ctx, fixture.MatchID, ann.RoundID, ann.LeagueID, fixture.GameType,
			SlotSpec{PlayerID: fixture.PlayerAID, Endpoint: fixture.PlayerAEndpoint},
			SlotSpec{PlayerID: fixture.PlayerBID, Endpoint: fixture.PlayerBEndpoint}, deps)
	}
	return env, ann, nil
}

// issueToken re-presents this referee's manager-issued token on
// outbound calls; the spec's auth model is a single bearer token per
// registered identity, re-used until it expires (spec §4.2).
func (a *Agent) issueToken() (string, error) {
	if a.token == "" {
		return "", fmt.Errorf("referee: not yet registered")
	}
	return a.token, nil
}

// RegisterHandlers wires this agent's inbound handling onto an
// httpx.Server, alongside the match registry's player-facing handlers.
func (a *Agent) RegisterHandlers(server *httpx.Server) {
	server.Handle(protocol.MethodNotifyRound, a.HandleRoundAnnouncement)
	a.registry.RegisterHandlers(server)
}
