// Package game is the even/odd rule engine (spec §4.8): draw a number,
// derive its parity, compare both players' calls, and score the
// result. It has no knowledge of matches, timers, or messages — those
// live in internal/referee.
package game

import (
	"math/rand"

	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// Drawer draws a uniform random integer in [lo, hi]. A struct wrapping
// *rand.Rand rather than the package-level rand funcs, so referees can
// be given a seeded, reproducible source in tests.
type Drawer struct {
	rng *rand.Rand
}

func NewDrawer(seed int64) *Drawer {
	return &Drawer{rng: rand.New(rand.NewSource(seed))}
}

// Draw produces a uniform integer in [lo, hi] and its parity string.
func (d *Drawer) Draw(lo, hi int) (number int, parity string) {
	number = lo + d.rng.Intn(hi-lo+1)
	return number, ParityOf(number)
}

// ParityOf reports "even" or "odd" for n.
func ParityOf(n int) string {
	if n%2 == 0 {
		return protocol.ParityEven
	}
	return protocol.ParityOdd
}

// Outcome is the scored result of comparing two parity calls against
// a drawn number (spec §4.8 steps 3-4).
type Outcome struct {
	DrawnNumber  int
	NumberParity string
	AChoice      string
	BChoice      string
	Status       string // protocol.ResultWin | ResultDraw
	WinnerIsA    bool
	WinnerIsB    bool
	BothWrong    bool // neither call matched the drawn parity
}

// Evaluate scores one round of even/odd against a single drawn number.
// Both players correct is always a DRAW (they agreed); exactly one
// correct call wins; both wrong is also scored DRAW here, with
// BothWrong set so the caller can decide whether to redraw instead of
// accepting it (spec §4.8, §9 open question — no-winner tiebreak,
// resolved by config.League.DrawOnBothWrong).
func Evaluate(drawnNumber int, aChoice, bChoice string) Outcome {
	parity := ParityOf(drawnNumber)
	aCorrect := aChoice == parity
	bCorrect := bChoice == parity

	out := Outcome{
		DrawnNumber:  drawnNumber,
		NumberParity: parity,
		AChoice:      aChoice,
		BChoice:      bChoice,
	}

	switch {
	case aCorrect && bCorrect:
		out.Status = protocol.ResultDraw
	case aCorrect && !bCorrect:
		out.Status = protocol.ResultWin
		out.WinnerIsA = true
	case !aCorrect && bCorrect:
		out.Status = protocol.ResultWin
		out.WinnerIsB = true
	default:
		out.Status = protocol.ResultDraw
		out.BothWrong = true
	}
	return out
}
