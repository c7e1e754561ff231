// Package standings computes and ranks a league table from match
// outcomes (spec §4.7): initialize one row per player, update it as
// matches report, and rank by points, then wins, then player id.
package standings

import (
	"sort"

	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// Table is a league's in-memory standings, one row per registered
// player. It is not safe for concurrent use; the manager serializes
// access through its own single-writer lock (spec §4.5).
type Table struct {
	rows    map[string]*protocol.StandingEntry
	order   []string
	scoring config.Scoring
}

// Initialize creates a zeroed row for every player_id (spec §4.7 "every
// registered player appears in standings from round 1, even at 0-0-0").
func Initialize(playerIDs []string, scoring config.Scoring) *Table {
	t := &Table{
		rows:    make(map[string]*protocol.StandingEntry, len(playerIDs)),
		order:   append([]string(nil), playerIDs...),
		scoring: scoring,
	}
	for _, id := range playerIDs {
		t.rows[id] = &protocol.StandingEntry{PlayerID: id}
	}
	return t
}

// Outcome is the minimal shape Update needs from a reported match
// result (spec §4.8 "Match report contract").
type Outcome struct {
	PlayerAID       string
	PlayerBID       string
	Status          string // protocol.ResultWin | ResultDraw | ResultCancelled
	WinnerPlayerID  string
	TechnicalLoss   bool // the loser defaulted (timeout/disconnect) rather than lost fairly
}

// Update folds one match outcome into the table. A WIN credits the
// winner and debits the loser; a DRAW credits both; a CANCELLED match
// (a player failed to join, or both players defaulted) increments played for both sides
// with no points awarded to either.
func (t *Table) Update(o Outcome) {
	a, aOK := t.rows[o.PlayerAID]
	b, bOK := t.rows[o.PlayerBID]
	if !aOK || !bOK {
		return
	}

	switch o.Status {
	case protocol.ResultWin:
		winner, loser := a, b
		if o.WinnerPlayerID == o.PlayerBID {
			winner, loser = b, a
		}
		winner.Played++
		winner.Wins++
		winner.Points += t.scoring.WinPoints
		loser.Played++
		loser.Losses++
		if o.TechnicalLoss {
			loser.Points += t.scoring.TechnicalLossPoints
		} else {
			loser.Points += t.scoring.LossPoints
		}
	case protocol.ResultDraw:
		a.Played++
		b.Played++
		a.Draws++
		b.Draws++
		a.Points += t.scoring.DrawPoints
		b.Points += t.scoring.DrawPoints
	case protocol.ResultCancelled:
		a.Played++
		b.Played++
	}
}

// Rank returns every row sorted by points desc, then wins desc, then
// player_id asc (spec §4.7 tiebreak order), with Rank fields assigned
// 1..N over that order. Ties in points AND wins share no special
// marker; rank strictly follows sort position.
func (t *Table) Rank() []protocol.StandingEntry {
	out := make([]protocol.StandingEntry, 0, len(t.rows))
	for _, id := range t.order {
		out = append(out, *t.rows[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Champion returns the player_id ranked first, or "" if the table has
// no rows (spec §4.7 "champion is the rank-1 entry once the league
// completes").
func (t *Table) Champion() string {
	ranked := t.Rank()
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].PlayerID
}
