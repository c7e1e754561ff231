package repo

// HistoryEntry is one past match from a player agent's own point of
// view, the input a Strategy uses to decide its next call (spec §4.9
// "choose(opponent_id, history)").
type HistoryEntry struct {
	MatchID        string `json:"match_id"`
	OpponentID     string `json:"opponent_id"`
	OwnChoice      string `json:"own_choice"`
	OpponentChoice string `json:"opponent_choice"`
	Result         string `json:"result"` // WIN | DRAW | CANCELLED | LOSS
}

type historyDoc struct {
	Entries []HistoryEntry `json:"entries"`
}

// PlayerHistoryRepo is the single owning writer for one player agent's
// local match history file.
type PlayerHistoryRepo struct {
	file *jsonFile
}

func NewPlayerHistoryRepo(path string) *PlayerHistoryRepo {
	return &PlayerHistoryRepo{file: newJSONFile(path)}
}

func (r *PlayerHistoryRepo) Append(entry HistoryEntry) error {
	var doc historyDoc
	return r.file.Update(&doc, func() error {
		doc.Entries = append(doc.Entries, entry)
		return nil
	})
}

func (r *PlayerHistoryRepo) All() ([]HistoryEntry, error) {
	var doc historyDoc
	err := r.file.Load(&doc)
	return doc.Entries, err
}

// AgainstOpponent returns only the entries played against opponentID,
// the slice most strategies actually care about.
func (r *PlayerHistoryRepo) AgainstOpponent(opponentID string) ([]HistoryEntry, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	var out []HistoryEntry
	for _, e := range all {
		if e.OpponentID == opponentID {
			out = append(out, e)
		}
	}
	return out, nil
}
