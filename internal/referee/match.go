// Package referee runs one match's state machine end to end: invite
// both players, collect their parity calls under a deadline with
// bounded retries, draw and score, then report upstream (spec §4.6,
// §4.8, §7 timeout/retry semantics).
package referee

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddeven-league/tournament-system/internal/clock"
	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/game"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

// State is one phase of a match's lifecycle (spec §4.6).
type State string

const (
	StateCreated           State = "CREATED"
	StateWaitingForPlayers State = "WAITING_FOR_PLAYERS"
	StateCollectingChoices State = "COLLECTING_CHOICES"
	StateDrawingNumber     State = "DRAWING_NUMBER"
	StateFinished          State = "FINISHED"
	StateCancelled         State = "CANCELLED"
)

// slot tracks one side of the match.
type slot struct {
	playerID string
	endpoint string

	joined      bool
	joinDecided bool

	choice        string
	choiceDecided bool
}

type joinEvent struct {
	playerID string
	accept   bool
}

type choiceEvent struct {
	playerID string
	choice   string
}

// SlotSpec is the caller-facing description of one side of a match,
// taken from the round announcement's match summary.
type SlotSpec struct {
	PlayerID string
	Endpoint string
}

// Deps bundles the match's collaborators, injected by the referee
// agent's main so Match never reaches for a global.
type Deps struct {
	RPC             *transport.Client
	Drawer          *game.Drawer
	Clock           clock.Clock
	Logger          *logging.Logger
	Cfg             *config.Config
	Issue           func() (string, error) // mints this referee's own auth token for outbound calls
	Sender          string                 // "referee:<id>"
	ContactEndpoint string                 // this referee's own /mcp URL, so players know where to call back
}

// Match is the live state machine for one game. Each Match owns
// exactly one goroutine (Run); inbound player messages arrive via
// HandleJoinAck/HandleChoice from the referee's HTTP handlers and are
// fed to that goroutine over channels, so there is no shared mutable
// state to lock beyond the channels themselves.
type Match struct {
	matchID  string
	roundID  string
	leagueID string
	gameType string

	a, b  slot
	state State

	joinCh   chan joinEvent
	choiceCh chan choiceEvent

	deps Deps
}

// NewMatch builds the live state-machine runner for a scheduled match.
func NewMatch(matchID, roundID, leagueID, gameType string, playerA, playerB SlotSpec, deps Deps) *Match {
	return &Match{
		matchID:  matchID,
		roundID:  roundID,
		leagueID: leagueID,
		gameType: gameType,
		a:        slot{playerID: playerA.PlayerID, endpoint: playerA.Endpoint},
		b:        slot{playerID: playerB.PlayerID, endpoint: playerB.Endpoint},
		state:    StateCreated,
		joinCh:   make(chan joinEvent, 4),
		choiceCh: make(chan choiceEvent, 4),
		deps:     deps,
	}
}

func (m *Match) ID() string    { return m.matchID }
func (m *Match) State() State  { return m.state }

// HandleJoinAck feeds an inbound GAME_JOIN_ACK to the running match.
// Safe to call from an HTTP handler goroutine; a duplicate ack for a
// player already decided is dropped (spec §7 idempotent duplicate handling).
func (m *Match) HandleJoinAck(playerID string, accept bool) {
	select {
	case m.joinCh <- joinEvent{playerID: playerID, accept: accept}:
	default:
	}
}

// HandleChoice feeds an inbound CHOOSE_PARITY_RESPONSE to the running match.
func (m *Match) HandleChoice(playerID, choice string) {
	select {
	case m.choiceCh <- choiceEvent{playerID: playerID, choice: choice}:
	default:
	}
}

// Run drives the match from invitation to reported result. It blocks
// until the match is FINISHED or CANCELLED.
func (m *Match) Run(ctx context.Context) error {
	m.sendInvitations(ctx)

	m.state = StateWaitingForPlayers
	m.awaitJoins(ctx)

	if !(m.a.joined && m.b.joined) {
		m.state = StateCancelled
		return m.reportCancelled(ctx, "not both players accepted the invitation")
	}

	m.state = StateCollectingChoices
	m.collectChoices(ctx)

	m.state = StateDrawingNumber
	result := m.resolve()

	m.state = StateFinished
	m.notifyGameOver(ctx, result)
	return m.reportResult(ctx, result)
}

func (m *Match) sendInvitations(ctx context.Context) {
	m.sendTo(ctx, m.a.endpoint, protocol.MethodGameInvitation, protocol.GameInvitation{
		MatchID: m.matchID, GameType: m.gameType, RoleInMatch: protocol.RoleInMatchA, OpponentID: m.b.playerID,
		RefereeEndpoint: m.deps.ContactEndpoint,
	})
	m.sendTo(ctx, m.b.endpoint, protocol.MethodGameInvitation, protocol.GameInvitation{
		MatchID: m.matchID, GameType: m.gameType, RoleInMatch: protocol.RoleInMatchB, OpponentID: m.a.playerID,
		RefereeEndpoint: m.deps.ContactEndpoint,
	})
}

// awaitJoins waits up to the configured join-ack timeout for both
// players to accept (spec §6 TIMEOUT_JOIN_ACK, default 5s). A player
// who never responds is simply recorded as not joined; Run then
// cancels the match unless both players joined.
func (m *Match) awaitJoins(ctx context.Context) {
	timer := m.deps.Clock.NewTimer(m.deps.Cfg.Timeouts.JoinAck)
	defer timer.Stop()

	for !(m.a.joinDecided && m.b.joinDecided) {
		select {
		case ev := <-m.joinCh:
			m.applyJoin(ev)
		case <-timer.C():
			m.a.joinDecided = true
			m.b.joinDecided = true
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Match) applyJoin(ev joinEvent) {
	switch ev.playerID {
	case m.a.playerID:
		if m.a.joinDecided {
			return // duplicate ack, ignored
		}
		m.a.joined = ev.accept
		m.a.joinDecided = true
	case m.b.playerID:
		if m.b.joinDecided {
			return
		}
		m.b.joined = ev.accept
		m.b.joinDecided = true
	}
}

// collectChoices sends CHOOSE_PARITY_CALL to every joined player and
// waits for their response, resending on a 1s/2s/4s backoff up to 3
// retries, bounded overall by the move timeout (spec §6
// TIMEOUT_MOVE=30s, RETRY_MAX_RETRIES=3).
func (m *Match) collectChoices(ctx context.Context) {
	if m.a.joined {
		m.sendChooseCall(ctx, m.a.endpoint, m.b.playerID)
	}
	if m.b.joined {
		m.sendChooseCall(ctx, m.b.endpoint, m.a.playerID)
	}

	overall := m.deps.Clock.NewTimer(m.deps.Cfg.Timeouts.Move)
	defer overall.Stop()

	backoffs := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	retry := m.deps.Clock.NewTimer(backoffs[0])
	defer retry.Stop()
	attempt := 0

	for !m.choicesSettled() {
		select {
		case ev := <-m.choiceCh:
			m.applyChoice(ctx, ev, attempt)
		case <-retry.C():
			if attempt >= m.deps.Cfg.Retry.MaxRetries {
				m.settleMissingChoices(ctx, attempt)
				return
			}
			m.resendOutstanding(ctx)
			attempt++
			idx := attempt
			if idx >= len(backoffs) {
				idx = len(backoffs) - 1
			}
			retry.Reset(backoffs[idx])
		case <-overall.C():
			m.settleMissingChoices(ctx, attempt)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Match) choicesSettled() bool {
	aSettled := !m.a.joined || m.a.choiceDecided
	bSettled := !m.b.joined || m.b.choiceDecided
	return aSettled && bSettled
}

// settleMissingChoices marks any still-undecided joined player as
// defaulted once retries or the move timeout are exhausted, first
// warning that player with GAME_ERROR/TIMEOUT_ERROR so it knows why
// it is about to suffer a technical loss (spec §8 S4).
func (m *Match) settleMissingChoices(ctx context.Context, attempt int) {
	if m.a.joined && !m.a.choiceDecided {
		m.sendGameError(ctx, m.a.endpoint, m.a.playerID, protocol.ErrCodeTimeout, "no parity choice received before the move deadline", attempt)
		m.a.choiceDecided = true
	}
	if m.b.joined && !m.b.choiceDecided {
		m.sendGameError(ctx, m.b.endpoint, m.b.playerID, protocol.ErrCodeTimeout, "no parity choice received before the move deadline", attempt)
		m.b.choiceDecided = true
	}
}

func (m *Match) resendOutstanding(ctx context.Context) {
	if m.a.joined && !m.a.choiceDecided {
		m.sendChooseCall(ctx, m.a.endpoint, m.b.playerID)
	}
	if m.b.joined && !m.b.choiceDecided {
		m.sendChooseCall(ctx, m.b.endpoint, m.a.playerID)
	}
}

// applyChoice records a player's CHOOSE_PARITY_RESPONSE. A choice
// outside the even/odd enum is not accepted as an answer: the sender
// is warned with GAME_ERROR/INVALID_CHOICE and left outstanding, so
// the normal resend/retry loop gives it another chance (spec §4.8).
func (m *Match) applyChoice(ctx context.Context, ev choiceEvent, attempt int) {
	switch ev.playerID {
	case m.a.playerID:
		if m.a.choiceDecided {
			return // duplicate response, ignored
		}
		if !protocol.ValidParity(ev.choice) {
			m.sendGameError(ctx, m.a.endpoint, m.a.playerID, protocol.ErrCodeInvalidChoice, "parity_choice must be \"even\" or \"odd\"", attempt)
			return
		}
		m.a.choice = ev.choice
		m.a.choiceDecided = true
	case m.b.playerID:
		if m.b.choiceDecided {
			return
		}
		if !protocol.ValidParity(ev.choice) {
			m.sendGameError(ctx, m.b.endpoint, m.b.playerID, protocol.ErrCodeInvalidChoice, "parity_choice must be \"even\" or \"odd\"", attempt)
			return
		}
		m.b.choice = ev.choice
		m.b.choiceDecided = true
	}
}

// sendGameError notifies a player of a retryable problem with its move,
// carrying the retry budget so the player can tell how much runway is
// left before a technical loss is reported (spec §4.8, §8 S4).
func (m *Match) sendGameError(ctx context.Context, endpoint, affectedPlayer, code, description string, attempt int) {
	m.sendTo(ctx, endpoint, protocol.MethodGameError, protocol.GameError{
		MatchID:          m.matchID,
		ErrorCode:        code,
		ErrorDescription: description,
		AffectedPlayer:   affectedPlayer,
		RetryCount:       attempt,
		MaxRetries:       m.deps.Cfg.Retry.MaxRetries,
		Consequence:      "technical loss if unresolved",
	})
}

func (m *Match) sendChooseCall(ctx context.Context, endpoint, opponentID string) {
	m.sendTo(ctx, endpoint, protocol.MethodChooseParityCall, protocol.ChooseParityCall{
		MatchID:  m.matchID,
		GameType: m.gameType,
		Deadline: protocol.NowTimestamp(),
		Context:  protocol.ChooseParityContext{OpponentID: opponentID, RoundID: m.roundID},
	})
}

// resolve turns the collected (or missing) choices into a GameResult.
// A player who never joined or never answered suffers a technical
// loss; if both defaulted the match is scored CANCELLED rather than
// drawn, since no number was ever drawn to adjudicate (spec §7).
func (m *Match) resolve() protocol.GameResult {
	aDefaulted := !m.a.joined || m.a.choice == ""
	bDefaulted := !m.b.joined || m.b.choice == ""

	switch {
	case aDefaulted && bDefaulted:
		return protocol.GameResult{Status: protocol.ResultCancelled, Reason: "both players defaulted"}
	case aDefaulted:
		return m.technicalLoss(m.a.playerID, m.b.playerID)
	case bDefaulted:
		return m.technicalLoss(m.b.playerID, m.a.playerID)
	}

	out := m.drawAndEvaluate()

	result := protocol.GameResult{
		DrawnNumber:  out.DrawnNumber,
		NumberParity: out.NumberParity,
		Choices:      map[string]string{m.a.playerID: out.AChoice, m.b.playerID: out.BChoice},
	}
	switch {
	case out.Status == protocol.ResultDraw:
		result.Status = protocol.ResultDraw
	case out.WinnerIsA:
		result.Status = protocol.ResultWin
		result.WinnerPlayerID = m.a.playerID
	case out.WinnerIsB:
		result.Status = protocol.ResultWin
		result.WinnerPlayerID = m.b.playerID
	}
	return result
}

// maxRedraws bounds the redraw loop used when both players are wrong
// and League.DrawOnBothWrong is cleared; a fresh draw is independent of
// the last, so this converges fast in practice but must still be bounded.
const maxRedraws = 20

// drawAndEvaluate draws a number and scores the round. When both
// players miss and the league is configured to not accept that as a
// draw, it redraws until one call is decisive or maxRedraws is spent,
// at which point it falls back to DRAW rather than looping forever.
func (m *Match) drawAndEvaluate() game.Outcome {
	lo, hi := m.deps.Cfg.League.NumberRangeLo, m.deps.Cfg.League.NumberRangeHi
	number, _ := m.deps.Drawer.Draw(lo, hi)
	out := game.Evaluate(number, m.a.choice, m.b.choice)

	if m.deps.Cfg.League.DrawOnBothWrong {
		return out
	}
	for attempt := 0; out.BothWrong && attempt < maxRedraws; attempt++ {
		number, _ = m.deps.Drawer.Draw(lo, hi)
		out = game.Evaluate(number, m.a.choice, m.b.choice)
	}
	return out
}

func (m *Match) technicalLoss(loserID, winnerID string) protocol.GameResult {
	return protocol.GameResult{
		Status:         protocol.ResultWin,
		WinnerPlayerID: winnerID,
		Reason:         fmt.Sprintf("%s failed to respond in time (technical loss)", loserID),
	}
}

func (m *Match) notifyGameOver(ctx context.Context, result protocol.GameResult) {
	over := protocol.GameOver{MatchID: m.matchID, GameResult: result}
	if m.a.joined {
		m.sendTo(ctx, m.a.endpoint, protocol.MethodGameOver, over)
	}
	if m.b.joined {
		m.sendTo(ctx, m.b.endpoint, protocol.MethodGameOver, over)
	}
}

func (m *Match) reportResult(ctx context.Context, result protocol.GameResult) error {
	report := protocol.MatchResultReport{
		MatchID:  m.matchID,
		RoundID:  m.roundID,
		LeagueID: m.leagueID,
		Result:   result,
	}
	return m.sendToManager(ctx, report)
}

func (m *Match) reportCancelled(ctx context.Context, reason string) error {
	result := protocol.GameResult{Status: protocol.ResultCancelled, Reason: reason}
	m.notifyGameOver(ctx, result)
	return m.reportResult(ctx, result)
}

func (m *Match) sendToManager(ctx context.Context, payload protocol.MatchResultReport) error {
	token, err := m.deps.Issue()
	if err != nil {
		return fmt.Errorf("referee: mint manager token: %w", err)
	}
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    protocol.MsgMatchResultReport,
		Sender:         m.deps.Sender,
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: m.matchID,
		AuthToken:      token,
	}
	params, err := encodeParams(env, payload)
	if err != nil {
		return fmt.Errorf("referee: encode match result report: %w", err)
	}
	_, err = m.deps.RPC.Call(ctx, m.deps.Cfg.ManagerEndpoint, protocol.MethodReportMatchResult, params, m.deps.Cfg.Timeouts.Generic)
	if err != nil {
		m.deps.Logger.WarnEvent("match_result_report_failed", "match_id", m.matchID, "error", err.Error())
	}
	return err
}

// sendTo is a best-effort fire-and-forget notification to a player
// endpoint; failures are logged, not fatal to the match (spec §7 —
// only the manager-facing report is load-bearing).
func (m *Match) sendTo(ctx context.Context, endpoint, method string, payload interface{}) {
	token, err := m.deps.Issue()
	if err != nil {
		m.deps.Logger.WarnEvent("token_issue_failed", "error", err.Error())
		return
	}
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    messageTypeFor(method),
		Sender:         m.deps.Sender,
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: m.matchID,
		AuthToken:      token,
	}
	params, err := encodeParams(env, payload)
	if err != nil {
		m.deps.Logger.WarnEvent("encode_failed", "method", method, "error", err.Error())
		return
	}
	if _, err := m.deps.RPC.Call(ctx, endpoint, method, params, m.deps.Cfg.Timeouts.Generic); err != nil {
		m.deps.Logger.WarnEvent("send_failed", "method", method, "endpoint", endpoint, "error", err.Error())
	}
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

func messageTypeFor(method string) string {
	switch method {
	case protocol.MethodGameInvitation:
		return protocol.MsgGameInvitation
	case protocol.MethodChooseParityCall:
		return protocol.MsgChooseParityCall
	case protocol.MethodGameOver:
		return protocol.MsgGameOver
	case protocol.MethodGameError:
		return protocol.MsgGameError
	default:
		return ""
	}
}
