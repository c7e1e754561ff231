package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoundRobinEvenPlayers(t *testing.T) {
	rounds := GenerateRoundRobin([]string{"p1", "p2", "p3", "p4"})
	require.Len(t, rounds, 3)

	seen := make(map[string]int)
	for _, round := range rounds {
		assert.Len(t, round.Matches, 2)
		for _, m := range round.Matches {
			assert.NotEmpty(t, m.PlayerAID)
			assert.NotEmpty(t, m.PlayerBID)
			seen[pairKey(m.PlayerAID, m.PlayerBID)]++
		}
	}
	// every pair must play exactly once across the whole schedule
	assert.Len(t, seen, 6)
	for pair, count := range seen {
		assert.Equalf(t, 1, count, "pair %s played %d times", pair, count)
	}
}

func TestGenerateRoundRobinOddPlayersGetByes(t *testing.T) {
	rounds := GenerateRoundRobin([]string{"p1", "p2", "p3"})
	require.Len(t, rounds, 3)

	playCounts := make(map[string]int)
	for _, round := range rounds {
		assert.LessOrEqual(t, len(round.Matches), 1)
		for _, m := range round.Matches {
			playCounts[m.PlayerAID]++
			playCounts[m.PlayerBID]++
		}
	}
	for _, p := range []string{"p1", "p2", "p3"} {
		assert.Equal(t, 2, playCounts[p], "player %s should play exactly 2 of 3 rounds (one bye)", p)
	}
}

func TestGenerateRoundRobinTooFewPlayers(t *testing.T) {
	assert.Nil(t, GenerateRoundRobin(nil))
	assert.Nil(t, GenerateRoundRobin([]string{"p1"}))
}

func TestAssignRefereesRespectsCapacity(t *testing.T) {
	matches := []Fixture{
		{PlayerAID: "p1", PlayerBID: "p2"},
		{PlayerAID: "p3", PlayerBID: "p4"},
		{PlayerAID: "p5", PlayerBID: "p6"},
	}
	referees := []RefereeInfo{
		{RefereeID: "ref1", Endpoint: "http://ref1", MaxConcurrentMatches: 2},
		{RefereeID: "ref2", Endpoint: "http://ref2", MaxConcurrentMatches: 1},
	}

	assignments, overflow, err := AssignReferees(matches, referees)
	require.NoError(t, err)
	require.Len(t, assignments, 3)
	assert.Empty(t, overflow)

	load := make(map[string]int)
	for _, a := range assignments {
		load[a.RefereeID]++
	}
	assert.LessOrEqual(t, load["ref1"], 2)
	assert.LessOrEqual(t, load["ref2"], 1)
}

// TestAssignRefereesQueuesOverflowWhenCapacityExhausted covers the case
// where more matches are scheduled than the referee pool can run at
// once: the matches that don't fit come back as overflow instead of
// failing the round, so the manager can dispatch them as referees free up.
func TestAssignRefereesQueuesOverflowWhenCapacityExhausted(t *testing.T) {
	matches := []Fixture{
		{PlayerAID: "p1", PlayerBID: "p2"},
		{PlayerAID: "p3", PlayerBID: "p4"},
	}
	referees := []RefereeInfo{
		{RefereeID: "ref1", Endpoint: "http://ref1", MaxConcurrentMatches: 1},
	}
	assignments, overflow, err := AssignReferees(matches, referees)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Len(t, overflow, 1)
	assert.Equal(t, matches[1], overflow[0])
}

func TestAssignRefereesNoReferees(t *testing.T) {
	_, _, err := AssignReferees([]Fixture{{PlayerAID: "p1", PlayerBID: "p2"}}, nil)
	assert.Error(t, err)
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
