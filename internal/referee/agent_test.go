package referee

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddeven-league/tournament-system/internal/clock"
	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

func testAgent(t *testing.T) *Agent {
	t.Helper()
	logger, err := logging.New("referee-agent-test", os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	cfg := &config.Config{
		ManagerEndpoint: "http://manager",
		Timeouts: config.Timeouts{
			JoinAck: 10 * time.Millisecond,
			Move:    10 * time.Millisecond,
			Generic: 10 * time.Millisecond,
		},
		Retry:  config.Retry{MaxRetries: 0, Base: time.Millisecond},
		League: config.League{NumberRangeLo: 0, NumberRangeHi: 9, DrawOnBothWrong: true},
	}
	rpc := transport.NewClient(10*time.Millisecond, 0, time.Millisecond, 5, time.Second, 1)
	agent := NewAgent("ref1", "http://ref1/mcp", []string{"even_odd"}, 4, cfg, rpc, logger, clock.Real{}, 1)
	agent.token = "test-token"
	return agent
}

func TestHandleRoundAnnouncementStartsOnlyOwnFixtures(t *testing.T) {
	agent := testAgent(t)
	ann := protocol.RoundAnnouncement{
		RoundID:  "r1",
		LeagueID: "league-1",
		Matches: []protocol.RoundMatchSummary{
			{MatchID: "m1", GameType: "even_odd", PlayerAID: "p1", PlayerBID: "p2", RefereeEndpoint: "http://ref1/mcp"},
			{MatchID: "m2", GameType: "even_odd", PlayerAID: "p3", PlayerBID: "p4", RefereeEndpoint: "http://other-referee/mcp"},
		},
	}

	_, _, err := agent.HandleRoundAnnouncement(context.Background(), protocol.Envelope{ConversationID: "r1"}, ann)
	require.NoError(t, err)

	_, started := agent.registry.lookup("m1")
	assert.True(t, started, "a fixture assigned to this referee's own endpoint must be started")

	_, notStarted := agent.registry.lookup("m2")
	assert.False(t, notStarted, "a fixture assigned to a different referee must not be started")
}

func TestIssueTokenFailsBeforeRegistration(t *testing.T) {
	agent := testAgent(t)
	agent.token = ""
	_, err := agent.issueToken()
	assert.Error(t, err)
}

func TestIssueTokenReturnsStoredToken(t *testing.T) {
	agent := testAgent(t)
	tok, err := agent.issueToken()
	require.NoError(t, err)
	assert.Equal(t, "test-token", tok)
}
