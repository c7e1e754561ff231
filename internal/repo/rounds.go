package repo

// RoundRecord is one round's journal entry: the matches announced for
// it and, once they finish, which completed and what round follows
// (spec §4.6 round lifecycle).
type RoundRecord struct {
	RoundID          string   `json:"round_id"`
	LeagueID         string   `json:"league_id"`
	MatchIDs         []string `json:"match_ids"`
	CompletedMatches []string `json:"completed_matches"`
	NextRoundID      string   `json:"next_round_id,omitempty"`
	Status           string   `json:"status"` // ANNOUNCED | COMPLETED
}

type roundsDoc struct {
	Rounds []RoundRecord `json:"rounds"`
}

// RoundsJournal is the single owning writer for a league's round history.
type RoundsJournal struct {
	file *jsonFile
}

func NewRoundsJournal(path string) *RoundsJournal {
	return &RoundsJournal{file: newJSONFile(path)}
}

func (j *RoundsJournal) Append(rec RoundRecord) error {
	var doc roundsDoc
	return j.file.Update(&doc, func() error {
		doc.Rounds = append(doc.Rounds, rec)
		return nil
	})
}

// MarkMatchCompleted records matchID as completed within roundID. It
// returns the updated record and whether every match in that round is
// now complete (spec §4.6 "round completes when all its matches report").
func (j *RoundsJournal) MarkMatchCompleted(roundID, matchID string) (RoundRecord, bool, error) {
	var doc roundsDoc
	var updated RoundRecord
	var allDone bool

	err := j.file.Update(&doc, func() error {
		for i := range doc.Rounds {
			if doc.Rounds[i].RoundID != roundID {
				continue
			}
			r := &doc.Rounds[i]
			if !containsString(r.CompletedMatches, matchID) {
				r.CompletedMatches = append(r.CompletedMatches, matchID)
			}
			allDone = len(r.CompletedMatches) >= len(r.MatchIDs)
			if allDone {
				r.Status = "COMPLETED"
			}
			updated = *r
			return nil
		}
		return nil
	})
	return updated, allDone, err
}

func (j *RoundsJournal) SetNextRound(roundID, nextRoundID string) error {
	var doc roundsDoc
	return j.file.Update(&doc, func() error {
		for i := range doc.Rounds {
			if doc.Rounds[i].RoundID == roundID {
				doc.Rounds[i].NextRoundID = nextRoundID
				return nil
			}
		}
		return nil
	})
}

func (j *RoundsJournal) All() ([]RoundRecord, error) {
	var doc roundsDoc
	err := j.file.Load(&doc)
	return doc.Rounds, err
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
