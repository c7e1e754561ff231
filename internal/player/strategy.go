// Package player implements the player agent skeleton (spec §4.10): a
// pluggable Strategy decides each parity call, everything else is
// protocol bookkeeping.
package player

import (
	"math/rand"

	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/repo"
)

// Strategy decides a parity call given the opponent and this player's
// own match history. It must be pure with respect to its inputs and
// fast — well under the move timeout (spec §4.10).
type Strategy interface {
	Choose(opponentID string, history []repo.HistoryEntry) string
}

// RandomStrategy calls even/odd uniformly at random.
type RandomStrategy struct {
	rng *rand.Rand
}

func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) Choose(_ string, _ []repo.HistoryEntry) string {
	if s.rng.Intn(2) == 0 {
		return protocol.ParityEven
	}
	return protocol.ParityOdd
}

// AlwaysEvenStrategy always calls even; useful as a deterministic
// baseline opponent in tests.
type AlwaysEvenStrategy struct{}

func (AlwaysEvenStrategy) Choose(_ string, _ []repo.HistoryEntry) string {
	return protocol.ParityEven
}

// PatternStrategy repeats its own last call against a given opponent,
// starting from a configured default the first time they meet — a
// simple stand-in for a learning strategy that reacts to opponent
// history (spec §4.10 "history records are the player's own
// append-only log").
type PatternStrategy struct {
	Default string
}

func (s PatternStrategy) Choose(_ string, history []repo.HistoryEntry) string {
	if len(history) == 0 {
		if s.Default == protocol.ParityOdd {
			return protocol.ParityOdd
		}
		return protocol.ParityEven
	}
	return history[len(history)-1].OwnChoice
}
