package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundsJournalMarkMatchCompleted(t *testing.T) {
	j := NewRoundsJournal(filepath.Join(t.TempDir(), "rounds.json"))
	require.NoError(t, j.Append(RoundRecord{RoundID: "r1", LeagueID: "league-1", MatchIDs: []string{"m1", "m2"}, Status: "ANNOUNCED"}))

	rec, allDone, err := j.MarkMatchCompleted("r1", "m1")
	require.NoError(t, err)
	assert.False(t, allDone)
	assert.Equal(t, "ANNOUNCED", rec.Status)

	rec, allDone, err = j.MarkMatchCompleted("r1", "m2")
	require.NoError(t, err)
	assert.True(t, allDone)
	assert.Equal(t, "COMPLETED", rec.Status)
}

func TestRoundsJournalMarkMatchCompletedIsIdempotent(t *testing.T) {
	j := NewRoundsJournal(filepath.Join(t.TempDir(), "rounds.json"))
	require.NoError(t, j.Append(RoundRecord{RoundID: "r1", MatchIDs: []string{"m1"}}))

	_, _, err := j.MarkMatchCompleted("r1", "m1")
	require.NoError(t, err)
	rec, allDone, err := j.MarkMatchCompleted("r1", "m1")
	require.NoError(t, err)
	assert.True(t, allDone)
	assert.Len(t, rec.CompletedMatches, 1, "duplicate completion must not be recorded twice")
}

func TestRoundsJournalSetNextRound(t *testing.T) {
	j := NewRoundsJournal(filepath.Join(t.TempDir(), "rounds.json"))
	require.NoError(t, j.Append(RoundRecord{RoundID: "r1"}))
	require.NoError(t, j.SetNextRound("r1", "r2"))

	all, err := j.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "r2", all[0].NextRoundID)
}
