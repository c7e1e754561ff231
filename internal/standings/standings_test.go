package standings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/protocol"
)

func testScoring() config.Scoring {
	return config.Scoring{WinPoints: 3, DrawPoints: 1, LossPoints: 0, TechnicalLossPoints: 0}
}

func TestInitializeCreatesZeroedRows(t *testing.T) {
	table := Initialize([]string{"p1", "p2", "p3"}, testScoring())
	ranked := table.Rank()
	require.Len(t, ranked, 3)
	for _, row := range ranked {
		assert.Equal(t, 0, row.Played)
		assert.Equal(t, 0, row.Points)
	}
}

func TestUpdateWin(t *testing.T) {
	table := Initialize([]string{"p1", "p2"}, testScoring())
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "p2", Status: protocol.ResultWin, WinnerPlayerID: "p1"})

	ranked := table.Rank()
	byID := indexByID(ranked)
	assert.Equal(t, 1, byID["p1"].Wins)
	assert.Equal(t, 3, byID["p1"].Points)
	assert.Equal(t, 1, byID["p2"].Losses)
	assert.Equal(t, 0, byID["p2"].Points)
}

func TestUpdateDraw(t *testing.T) {
	table := Initialize([]string{"p1", "p2"}, testScoring())
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "p2", Status: protocol.ResultDraw})

	byID := indexByID(table.Rank())
	assert.Equal(t, 1, byID["p1"].Draws)
	assert.Equal(t, 1, byID["p2"].Draws)
	assert.Equal(t, 1, byID["p1"].Points)
	assert.Equal(t, 1, byID["p2"].Points)
}

func TestUpdateCancelledCountsPlayedNoPoints(t *testing.T) {
	table := Initialize([]string{"p1", "p2"}, testScoring())
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "p2", Status: protocol.ResultCancelled})

	byID := indexByID(table.Rank())
	assert.Equal(t, 1, byID["p1"].Played)
	assert.Equal(t, 1, byID["p2"].Played)
	assert.Equal(t, 0, byID["p1"].Points)
	assert.Equal(t, 0, byID["p2"].Points)
	assert.Equal(t, 0, byID["p1"].Wins+byID["p1"].Draws+byID["p1"].Losses)
}

func TestUpdateTechnicalLoss(t *testing.T) {
	scoring := config.Scoring{WinPoints: 3, DrawPoints: 1, LossPoints: 0, TechnicalLossPoints: -1}
	table := Initialize([]string{"p1", "p2"}, scoring)
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "p2", Status: protocol.ResultWin, WinnerPlayerID: "p1", TechnicalLoss: true})

	byID := indexByID(table.Rank())
	assert.Equal(t, -1, byID["p2"].Points)
}

func TestUpdateIgnoresUnknownPlayers(t *testing.T) {
	table := Initialize([]string{"p1", "p2"}, testScoring())
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "ghost", Status: protocol.ResultWin, WinnerPlayerID: "p1"})

	byID := indexByID(table.Rank())
	assert.Equal(t, 0, byID["p1"].Points, "an outcome referencing an unregistered player must not be applied")
}

func TestRankOrdersByPointsThenWinsThenPlayerID(t *testing.T) {
	table := Initialize([]string{"p3", "p1", "p2"}, testScoring())
	// p1 beats p3; p2 draws with p3.
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "p3", Status: protocol.ResultWin, WinnerPlayerID: "p1"})
	table.Update(Outcome{PlayerAID: "p2", PlayerBID: "p3", Status: protocol.ResultDraw})

	ranked := table.Rank()
	// p1 has 3 points; p2 and p3 both have 1 point and 0 wins, so
	// player_id asc puts p2 ahead of p3
	require.Len(t, ranked, 3)
	assert.Equal(t, "p1", ranked[0].PlayerID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "p2", ranked[1].PlayerID)
	assert.Equal(t, "p3", ranked[2].PlayerID)
}

func TestRankTiebreaksByPlayerIDWhenPointsAndWinsTie(t *testing.T) {
	table := Initialize([]string{"pB", "pA"}, testScoring())
	// both end up with identical points and wins; player_id asc breaks the tie
	ranked := table.Rank()
	require.Len(t, ranked, 2)
	assert.Equal(t, "pA", ranked[0].PlayerID)
	assert.Equal(t, "pB", ranked[1].PlayerID)
}

func TestChampionIsRankOne(t *testing.T) {
	table := Initialize([]string{"p1", "p2"}, testScoring())
	table.Update(Outcome{PlayerAID: "p1", PlayerBID: "p2", Status: protocol.ResultWin, WinnerPlayerID: "p1"})
	assert.Equal(t, "p1", table.Champion())
}

func TestChampionEmptyTable(t *testing.T) {
	table := Initialize(nil, testScoring())
	assert.Equal(t, "", table.Champion())
}

func indexByID(entries []protocol.StandingEntry) map[string]protocol.StandingEntry {
	out := make(map[string]protocol.StandingEntry, len(entries))
	for _, e := range entries {
		out[e.PlayerID] = e
	}
	return out
}
