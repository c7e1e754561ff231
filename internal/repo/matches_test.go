package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddeven-league/tournament-system/internal/protocol"
)

func TestMatchStoreCreateAndGet(t *testing.T) {
	store := NewMatchStore(filepath.Join(t.TempDir(), "matches.json"))
	require.NoError(t, store.Create(MatchRecord{MatchID: "m1", RoundID: "r1", LeagueID: "league-1"}))

	rec, ok, err := store.Get("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", rec.RoundID)
}

func TestMatchStoreReportResultIsIdempotent(t *testing.T) {
	store := NewMatchStore(filepath.Join(t.TempDir(), "matches.json"))
	require.NoError(t, store.Create(MatchRecord{MatchID: "m1", RoundID: "r1", LeagueID: "league-1"}))

	result := protocol.GameResult{Status: protocol.ResultWin, WinnerPlayerID: "p1", DrawnNumber: 4, NumberParity: protocol.ParityEven}
	rec, already, err := store.ReportResult("m1", result)
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, rec.Reported)
	assert.Equal(t, "p1", rec.Result.WinnerPlayerID)

	dup := protocol.GameResult{Status: protocol.ResultWin, WinnerPlayerID: "p2", DrawnNumber: 7, NumberParity: protocol.ParityOdd}
	rec2, already2, err := store.ReportResult("m1", dup)
	require.NoError(t, err)
	assert.True(t, already2)
	assert.Equal(t, "p1", rec2.Result.WinnerPlayerID, "the original report must not be overwritten")
}

func TestMatchStoreReportResultUnknownMatch(t *testing.T) {
	store := NewMatchStore(filepath.Join(t.TempDir(), "matches.json"))
	_, _, err := store.ReportResult("ghost", protocol.GameResult{Status: protocol.ResultDraw})
	assert.Error(t, err)
}

func TestMatchStoreAllForRound(t *testing.T) {
	store := NewMatchStore(filepath.Join(t.TempDir(), "matches.json"))
	require.NoError(t, store.Create(MatchRecord{MatchID: "m1", RoundID: "r1"}))
	require.NoError(t, store.Create(MatchRecord{MatchID: "m2", RoundID: "r1"}))
	require.NoError(t, store.Create(MatchRecord{MatchID: "m3", RoundID: "r2"}))

	matches, err := store.AllForRound("r1")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
