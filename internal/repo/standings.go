package repo

import "github.com/oddeven-league/tournament-system/internal/protocol"

// StandingsDoc is the on-disk snapshot of one league's table (spec §4.7).
// Version increases by exactly one on every Save so readers can detect
// a stale copy.
type StandingsDoc struct {
	LeagueID string                    `json:"league_id"`
	RoundID  string                    `json:"round_id"`
	Version  int                       `json:"version"`
	Entries  []protocol.StandingEntry  `json:"entries"`
}

// StandingsRepo is the single owning writer for a league's standings file.
type StandingsRepo struct {
	file *jsonFile
}

func NewStandingsRepo(path string) *StandingsRepo {
	return &StandingsRepo{file: newJSONFile(path)}
}

func (r *StandingsRepo) Load() (StandingsDoc, error) {
	var doc StandingsDoc
	err := r.file.Load(&doc)
	return doc, err
}

// Save persists entries for roundID, incrementing the document's
// version, and returns the new version.
func (r *StandingsRepo) Save(leagueID, roundID string, entries []protocol.StandingEntry) (int, error) {
	var doc StandingsDoc
	err := r.file.Update(&doc, func() error {
		doc.LeagueID = leagueID
		doc.RoundID = roundID
		doc.Entries = entries
		doc.Version++
		return nil
	})
	return doc.Version, err
}
