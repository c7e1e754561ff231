// Package manager implements the league orchestrator: agent
// registration, round-robin scheduling, round lifecycle, standings,
// and league completion (spec §4.9). Registration, result handling,
// and broadcasts all funnel through one mutex so the standings and
// rounds journals behave as a single-writer critical section.
package manager

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/oddeven-league/tournament-system/internal/authtoken"
	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/repo"
	"github.com/oddeven-league/tournament-system/internal/scheduler"
	"github.com/oddeven-league/tournament-system/internal/standings"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

// status values for the league's own lifecycle.
const (
	statusPending   = "PENDING"
	statusRunning   = "RUNNING"
	statusCompleted = "COMPLETED"
)

// pendingFixture is an overflow fixture whose match_id is already
// reserved (and already counted in its round's journal entry) but
// which has not yet been handed to a referee.
type pendingFixture struct {
	MatchID string
	Fixture scheduler.Fixture
}

// League is the single orchestrator instance this manager process
// runs. Its mutex is the "single writer" the spec requires around the
// standings and rounds journals (spec §4.9 concurrency note).
type League struct {
	ID     string
	sender string

	cfg     *config.Config
	rpc     *transport.Client
	auth    *authtoken.Service
	logger  *logging.Logger
	limiter *rate.Limiter
	hub     *Hub

	registry      *Registry
	standingsRepo *repo.StandingsRepo
	roundsJournal *repo.RoundsJournal
	matchStore    *repo.MatchStore

	mu              sync.Mutex
	table           *standings.Table
	rounds          []scheduler.Round
	roundIDs        []string
	currentRoundIdx int
	status          string

	// refLoad tracks each referee's currently in-flight match count so
	// overflow fixtures can be handed out as capacity frees up (spec
	// §4.6 "the manager schedules the overflow sequentially within the
	// same logical round"). overflow is keyed by round_id.
	refLoad  map[string]int
	overflow map[string][]pendingFixture
}

// Deps bundles the league's collaborators, assembled once in main().
type Deps struct {
	Cfg           *config.Config
	RPC           *transport.Client
	Auth          *authtoken.Service
	Logger        *logging.Logger
	Hub           *Hub
	StandingsRepo *repo.StandingsRepo
	RoundsJournal *repo.RoundsJournal
	MatchStore    *repo.MatchStore
}

func NewLeague(id string, deps Deps) *League {
	return &League{
		ID:            id,
		sender:        protocol.FormatSender(protocol.RoleLeagueManager, id),
		cfg:           deps.Cfg,
		rpc:           deps.RPC,
		auth:          deps.Auth,
		logger:        deps.Logger,
		hub:           deps.Hub,
		limiter:       rate.NewLimiter(rate.Limit(50), 50),
		registry:      NewRegistry(deps.Cfg.League.MaxPlayers),
		standingsRepo: deps.StandingsRepo,
		roundsJournal: deps.RoundsJournal,
		matchStore:    deps.MatchStore,
		status:        statusPending,
		refLoad:       make(map[string]int),
		overflow:      make(map[string][]pendingFixture),
	}
}

// HandleRefereeRegister admits a referee and issues its bearer token
// (spec §6 message 1/2).
func (l *League) HandleRefereeRegister(_ context.Context, _ protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	req, ok := payload.(protocol.RefereeRegisterRequest)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: unexpected payload type for REFEREE_REGISTER_REQUEST")
	}

	refereeID := req.RefereeID
	if refereeID == "" {
		refereeID = "ref-" + uuid.NewString()[:8]
	}
	l.registry.AddReferee(RefereeEntry{
		RefereeID:            refereeID,
		ContactEndpoint:      req.RefereeMeta.ContactEndpoint,
		GameTypes:            req.RefereeMeta.GameTypes,
		MaxConcurrentMatches: req.RefereeMeta.MaxConcurrentMatches,
	})

	token, err := l.auth.Issue(refereeID, l.ID, protocol.RoleReferee)
	if err != nil {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: issue referee token: %w", err)
	}

	l.logger.Event("referee_registered", "referee_id", refereeID, "endpoint", req.RefereeMeta.ContactEndpoint)

	resp := protocol.RefereeRegisterResponse{
		Status:    protocol.StatusAccepted,
		RefereeID: refereeID,
		AuthToken: token,
		LeagueID:  l.ID,
	}
	return l.responseEnvelope(protocol.MsgRefereeRegisterResponse), resp, nil
}

// HandlePlayerRegister admits a player, rejecting once max_players is
// reached (spec §6 message 3/4, §3 league capacity invariant).
func (l *League) HandlePlayerRegister(_ context.Context, _ protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	req, ok := payload.(protocol.LeagueRegisterRequest)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: unexpected payload type for LEAGUE_REGISTER_REQUEST")
	}

	playerID := req.PlayerID
	if playerID == "" {
		playerID = "player-" + uuid.NewString()[:8]
	}

	accepted := l.registry.AddPlayer(PlayerEntry{
		PlayerID:        playerID,
		DisplayName:     req.PlayerMeta.DisplayName,
		ContactEndpoint: req.PlayerMeta.ContactEndpoint,
	})
	if !accepted {
		resp := protocol.LeagueRegisterResponse{
			Status:          protocol.StatusRejected,
			RejectionReason: "league is full",
		}
		return l.responseEnvelope(protocol.MsgLeagueRegisterResponse), resp, nil
	}

	token, err := l.auth.Issue(playerID, l.ID, protocol.RolePlayer)
	if err != nil {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: issue player token: %w", err)
	}

	l.logger.Event("player_registered", "player_id", playerID, "endpoint", req.PlayerMeta.ContactEndpoint)

	resp := protocol.LeagueRegisterResponse{
		Status:    protocol.StatusAccepted,
		PlayerID:  playerID,
		AuthToken: token,
		LeagueID:  l.ID,
	}
	return l.responseEnvelope(protocol.MsgLeagueRegisterResponse), resp, nil
}

func (l *League) responseEnvelope(messageType string) protocol.Envelope {
	return protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    messageType,
		Sender:         l.sender,
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: uuid.NewString(),
		AuthToken:      "",
	}
}

// StartLeague builds the round-robin schedule, assigns referees to the
// first round's fixtures, persists the journal, and announces round 1
// (spec §4.9 "start_league").
func (l *League) StartLeague(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status != statusPending {
		return fmt.Errorf("manager: league %s already started", l.ID)
	}

	playerIDs := l.registry.PlayerIDs()
	if len(playerIDs) < l.cfg.League.MinPlayers {
		return fmt.Errorf("manager: need at least %d players, have %d", l.cfg.League.MinPlayers, len(playerIDs))
	}

	l.rounds = scheduler.GenerateRoundRobin(playerIDs)
	l.roundIDs = make([]string, len(l.rounds))
	for i := range l.rounds {
		l.roundIDs[i] = fmt.Sprintf("%s-round-%d", l.ID, i+1)
	}
	l.table = standings.Initialize(playerIDs, l.cfg.Scoring)
	l.status = statusRunning
	l.currentRoundIdx = 0

	return l.announceRoundLocked(ctx, 0)
}

// matchID derives a fixture's stable match_id from its round and
// players, reserved up front even for fixtures that must wait in the
// overflow queue before a referee is actually assigned to them.
func (l *League) matchID(roundID string, f scheduler.Fixture) string {
	return fmt.Sprintf("%s-m-%s-%s", roundID, f.PlayerAID, f.PlayerBID)
}

// announceRoundLocked assigns referees, persists the round record,
// creates match records, and broadcasts ROUND_ANNOUNCEMENT to every
// player and referee in parallel (spec §4.9 announce_round). Fixtures
// beyond the referee pool's combined capacity are queued as overflow
// rather than failing the round; they are dispatched one at a time as
// HandleMatchResultReport frees up a referee (spec §4.6). Caller must
// hold l.mu.
func (l *League) announceRoundLocked(ctx context.Context, idx int) error {
	round := l.rounds[idx]
	roundID := l.roundIDs[idx]

	refs := l.registry.RefereeInfos()
	assignments, overflowFixtures, err := scheduler.AssignReferees(round.Matches, refs)
	if err != nil {
		return fmt.Errorf("manager: assign referees for round %s: %w", roundID, err)
	}

	matchIDs := make([]string, 0, len(assignments)+len(overflowFixtures))
	summaries := make([]protocol.RoundMatchSummary, 0, len(assignments))
	for _, a := range assignments {
		matchID := l.matchID(roundID, a.Fixture)
		matchIDs = append(matchIDs, matchID)
		l.refLoad[a.RefereeID]++

		playerA, _ := l.registry.PlayerByID(a.PlayerAID)
		playerB, _ := l.registry.PlayerByID(a.PlayerBID)

		if err := l.matchStore.Create(repo.MatchRecord{
			MatchID:   matchID,
			RoundID:   roundID,
			LeagueID:  l.ID,
			GameType:  l.cfg.League.GameType,
			PlayerAID: a.PlayerAID,
			PlayerBID: a.PlayerBID,
			RefereeID: a.RefereeID,
		}); err != nil {
			return fmt.Errorf("manager: persist match %s: %w", matchID, err)
		}

		summaries = append(summaries, protocol.RoundMatchSummary{
			MatchID:         matchID,
			GameType:        l.cfg.League.GameType,
			PlayerAID:       a.PlayerAID,
			PlayerBID:       a.PlayerBID,
			RefereeEndpoint: a.RefereeEndpoint,
			PlayerAEndpoint: playerA.ContactEndpoint,
			PlayerBEndpoint: playerB.ContactEndpoint,
		})
	}

	for _, f := range overflowFixtures {
		matchID := l.matchID(roundID, f)
		matchIDs = append(matchIDs, matchID)
		l.overflow[roundID] = append(l.overflow[roundID], pendingFixture{MatchID: matchID, Fixture: f})
	}

	if err := l.roundsJournal.Append(repo.RoundRecord{
		RoundID:  roundID,
		LeagueID: l.ID,
		MatchIDs: matchIDs,
		Status:   "ANNOUNCED",
	}); err != nil {
		return fmt.Errorf("manager: persist round %s: %w", roundID, err)
	}

	announcement := protocol.RoundAnnouncement{RoundID: roundID, LeagueID: l.ID, Matches: summaries}
	l.broadcastToPlayersAndReferees(ctx, protocol.MsgRoundAnnouncement, protocol.MethodNotifyRound, announcement)
	l.hub.Broadcast("round_announcement", announcement)
	l.logger.Event("round_announced", "round_id", roundID, "matches", len(summaries), "queued", len(overflowFixtures))
	return nil
}

// dispatchOverflowLocked hands queued overflow fixtures to referees
// that now have spare capacity, one fixture per referee per call (a
// single freed match can only make room for one more). Caller must
// hold l.mu.
func (l *League) dispatchOverflowLocked(ctx context.Context, roundID string) {
	for _, ref := range l.registry.RefereeInfos() {
		queue := l.overflow[roundID]
		if len(queue) == 0 {
			return
		}
		if l.refLoad[ref.RefereeID] >= ref.MaxConcurrentMatches {
			continue
		}

		pending := queue[0]
		l.overflow[roundID] = queue[1:]
		l.refLoad[ref.RefereeID]++

		playerA, _ := l.registry.PlayerByID(pending.Fixture.PlayerAID)
		playerB, _ := l.registry.PlayerByID(pending.Fixture.PlayerBID)

		if err := l.matchStore.Create(repo.MatchRecord{
			MatchID:   pending.MatchID,
			RoundID:   roundID,
			LeagueID:  l.ID,
			GameType:  l.cfg.League.GameType,
			PlayerAID: pending.Fixture.PlayerAID,
			PlayerBID: pending.Fixture.PlayerBID,
			RefereeID: ref.RefereeID,
		}); err != nil {
			l.logger.WarnEvent("overflow_match_persist_failed", "match_id", pending.MatchID, "error", err.Error())
			return
		}

		summary := protocol.RoundMatchSummary{
			MatchID:         pending.MatchID,
			GameType:        l.cfg.League.GameType,
			PlayerAID:       pending.Fixture.PlayerAID,
			PlayerBID:       pending.Fixture.PlayerBID,
			RefereeEndpoint: ref.Endpoint,
			PlayerAEndpoint: playerA.ContactEndpoint,
			PlayerBEndpoint: playerB.ContactEndpoint,
		}
		announcement := protocol.RoundAnnouncement{RoundID: roundID, LeagueID: l.ID, Matches: []protocol.RoundMatchSummary{summary}}
		l.sendOne(ctx, playerA.ContactEndpoint, playerA.PlayerID, protocol.RolePlayer, protocol.MsgRoundAnnouncement, protocol.MethodNotifyRound, announcement)
		l.sendOne(ctx, playerB.ContactEndpoint, playerB.PlayerID, protocol.RolePlayer, protocol.MsgRoundAnnouncement, protocol.MethodNotifyRound, announcement)
		l.sendOne(ctx, ref.Endpoint, ref.RefereeID, protocol.RoleReferee, protocol.MsgRoundAnnouncement, protocol.MethodNotifyRound, announcement)
		l.hub.Broadcast("round_announcement", announcement)
		l.logger.Event("overflow_match_dispatched", "round_id", roundID, "match_id", pending.MatchID, "referee_id", ref.RefereeID)
	}
}

// HandleMatchResultReport folds a referee's reported outcome into
// standings, exactly once per match_id, then checks whether the round
// has completed (spec §6 message 12, §8 S6 idempotent duplicate report).
func (l *League) HandleMatchResultReport(ctx context.Context, _ protocol.Envelope, payload interface{}) (protocol.Envelope, interface{}, error) {
	report, ok := payload.(protocol.MatchResultReport)
	if !ok {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: unexpected payload type for MATCH_RESULT_REPORT")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, alreadyReported, err := l.matchStore.ReportResult(report.MatchID, report.Result)
	if err != nil {
		return protocol.Envelope{}, nil, protocol.NewRPCError(protocol.ErrCodeMissingField, err.Error())
	}
	if alreadyReported {
		l.logger.WarnEvent("duplicate_match_result_report", "match_id", report.MatchID)
		return l.responseEnvelope(protocol.MsgMatchResultReport), report, nil
	}

	if l.table != nil {
		l.table.Update(standings.Outcome{
			PlayerAID:      rec.PlayerAID,
			PlayerBID:      rec.PlayerBID,
			Status:         report.Result.Status,
			WinnerPlayerID: report.Result.WinnerPlayerID,
			TechnicalLoss:  report.Result.Reason != "",
		})
	}

	if rec.RefereeID != "" && l.refLoad[rec.RefereeID] > 0 {
		l.refLoad[rec.RefereeID]--
	}
	l.dispatchOverflowLocked(ctx, report.RoundID)

	roundRec, allDone, err := l.roundsJournal.MarkMatchCompleted(report.RoundID, report.MatchID)
	if err != nil {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: mark match completed: %w", err)
	}

	version, err := l.persistStandingsLocked(report.RoundID)
	if err != nil {
		return protocol.Envelope{}, nil, fmt.Errorf("manager: persist standings: %w", err)
	}
	l.broadcastStandingsLocked(ctx, report.RoundID, version)

	if allDone {
		if err := l.completeRoundLocked(ctx, roundRec); err != nil {
			return protocol.Envelope{}, nil, err
		}
	}

	return l.responseEnvelope(protocol.MsgMatchResultReport), report, nil
}

func (l *League) persistStandingsLocked(roundID string) (int, error) {
	if l.table == nil {
		return 0, nil
	}
	return l.standingsRepo.Save(l.ID, roundID, l.table.Rank())
}

func (l *League) broadcastStandingsLocked(ctx context.Context, roundID string, version int) {
	update := protocol.LeagueStandingsUpdate{LeagueID: l.ID, RoundID: roundID, Standings: l.table.Rank()}
	l.broadcastToPlayers(ctx, protocol.MsgLeagueStandingsUpdate, protocol.MethodNotifyStandingsUpdate, update)
	l.hub.Broadcast("standings_update", map[string]interface{}{"version": version, "standings": update.Standings})
}

// completeRoundLocked closes out a finished round and either announces
// the next one or completes the league (spec §4.9 round_complete).
// Caller must hold l.mu.
func (l *League) completeRoundLocked(ctx context.Context, roundRec repo.RoundRecord) error {
	nextIdx := l.currentRoundIdx + 1
	completed := protocol.RoundCompleted{
		RoundID:          roundRec.RoundID,
		LeagueID:         l.ID,
		CompletedMatches: roundRec.CompletedMatches,
	}
	if nextIdx < len(l.rounds) {
		completed.NextRoundID = l.roundIDs[nextIdx]
	}
	l.broadcastToPlayers(ctx, protocol.MsgRoundCompleted, protocol.MethodNotifyRoundCompleted, completed)
	l.hub.Broadcast("round_completed", completed)
	l.logger.Event("round_completed", "round_id", roundRec.RoundID)

	if nextIdx >= len(l.rounds) {
		return l.completeLeagueLocked(ctx)
	}
	l.currentRoundIdx = nextIdx
	return l.announceRoundLocked(ctx, nextIdx)
}

// completeLeagueLocked computes the champion and broadcasts
// LEAGUE_COMPLETED (spec §4.9 complete_league). Caller must hold l.mu.
func (l *League) completeLeagueLocked(ctx context.Context) error {
	l.status = statusCompleted
	final := l.table.Rank()

	totalMatches := 0
	for _, r := range l.rounds {
		totalMatches += len(r.Matches)
	}

	msg := protocol.LeagueCompleted{
		LeagueID:       l.ID,
		TotalRounds:    len(l.rounds),
		TotalMatches:   totalMatches,
		Champion:       l.table.Champion(),
		FinalStandings: final,
	}
	l.broadcastToPlayers(ctx, protocol.MsgLeagueCompleted, protocol.MethodNotifyLeagueCompleted, msg)
	l.hub.Broadcast("league_completed", msg)
	l.logger.Event("league_completed", "league_id", l.ID, "champion", msg.Champion)
	return nil
}

// broadcastToPlayers fans a message out to every registered player
// concurrently, pacing calls through the shared rate limiter so a
// large league doesn't open hundreds of sockets at once (spec §4.9
// "broadcasts proceed in parallel; individual failures are logged but
// do not abort the round").
func (l *League) broadcastToPlayers(ctx context.Context, messageType, method string, payload interface{}) {
	l.fanOutPlayers(ctx, l.registry.Players(), messageType, method, payload)
}

func (l *League) broadcastToPlayersAndReferees(ctx context.Context, messageType, method string, payload interface{}) {
	l.broadcastToPlayers(ctx, messageType, method, payload)
	l.fanOutReferees(ctx, l.registry.Referees(), messageType, method, payload)
}

func (l *League) fanOutPlayers(ctx context.Context, players []PlayerEntry, messageType, method string, payload interface{}) {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range players {
		p := p
		g.Go(func() error {
			if err := l.limiter.Wait(gctx); err != nil {
				return nil
			}
			l.sendOne(gctx, p.ContactEndpoint, p.PlayerID, protocol.RolePlayer, messageType, method, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *League) fanOutReferees(ctx context.Context, refs []RefereeEntry, messageType, method string, payload interface{}) {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range refs {
		r := r
		g.Go(func() error {
			if err := l.limiter.Wait(gctx); err != nil {
				return nil
			}
			l.sendOne(gctx, r.ContactEndpoint, r.RefereeID, protocol.RoleReferee, messageType, method, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *League) sendOne(ctx context.Context, endpoint, agentID, role, messageType, method string, payload interface{}) {
	token, err := l.auth.Issue(l.ID, l.ID, protocol.RoleLeagueManager)
	if err != nil {
		l.logger.WarnEvent("broadcast_token_failed", "agent_id", agentID, "error", err.Error())
		return
	}
	env := protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    messageType,
		Sender:         l.sender,
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: uuid.NewString(),
		AuthToken:      token,
	}
	params, err := encodeParams(env, payload)
	if err != nil {
		l.logger.WarnEvent("broadcast_encode_failed", "agent_id", agentID, "error", err.Error())
		return
	}
	if _, err := l.rpc.Call(ctx, endpoint, method, params, l.cfg.Timeouts.Generic); err != nil {
		l.logger.WarnEvent("broadcast_send_failed", "role", role, "agent_id", agentID, "endpoint", endpoint, "error", err.Error())
	}
}
