package player

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/repo"
)

func TestRandomStrategyOnlyEverChoosesValidParity(t *testing.T) {
	s := NewRandomStrategy(1)
	for i := 0; i < 50; i++ {
		choice := s.Choose("opp", nil)
		assert.Contains(t, []string{protocol.ParityEven, protocol.ParityOdd}, choice)
	}
}

func TestAlwaysEvenStrategy(t *testing.T) {
	s := AlwaysEvenStrategy{}
	assert.Equal(t, protocol.ParityEven, s.Choose("opp", nil))
}

func TestPatternStrategyDefaultsOnFirstMeeting(t *testing.T) {
	s := PatternStrategy{Default: protocol.ParityOdd}
	assert.Equal(t, protocol.ParityOdd, s.Choose("opp", nil))
}

func TestPatternStrategyRepeatsLastOwnChoice(t *testing.T) {
	s := PatternStrategy{Default: protocol.ParityEven}
	history := []repo.HistoryEntry{
		{OpponentID: "opp", OwnChoice: protocol.ParityOdd},
	}
	assert.Equal(t, protocol.ParityOdd, s.Choose("opp", history))
}
