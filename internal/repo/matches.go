package repo

import (
	"fmt"

	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// MatchRecord is the manager's durable record of one scheduled match
// and, once reported, its outcome (spec §4.6, §8 S6 duplicate-report
// idempotency).
type MatchRecord struct {
	MatchID    string              `json:"match_id"`
	RoundID    string              `json:"round_id"`
	LeagueID   string              `json:"league_id"`
	GameType   string              `json:"game_type"`
	PlayerAID  string              `json:"player_a_id"`
	PlayerBID  string              `json:"player_b_id"`
	RefereeID  string              `json:"referee_id"`
	Reported   bool                `json:"reported"`
	Result     *protocol.GameResult `json:"result,omitempty"`
}

type matchStoreDoc struct {
	Matches map[string]MatchRecord `json:"matches"`
}

// MatchStore is the single owning writer for a league's match records.
type MatchStore struct {
	file *jsonFile
}

func NewMatchStore(path string) *MatchStore {
	return &MatchStore{file: newJSONFile(path)}
}

func (s *MatchStore) Create(rec MatchRecord) error {
	var doc matchStoreDoc
	return s.file.Update(&doc, func() error {
		if doc.Matches == nil {
			doc.Matches = make(map[string]MatchRecord)
		}
		doc.Matches[rec.MatchID] = rec
		return nil
	})
}

func (s *MatchStore) Get(matchID string) (MatchRecord, bool, error) {
	var doc matchStoreDoc
	if err := s.file.Load(&doc); err != nil {
		return MatchRecord{}, false, err
	}
	rec, ok := doc.Matches[matchID]
	return rec, ok, nil
}

// ReportResult records a match's outcome exactly once. If the match
// was already reported, it returns the previously stored record and
// alreadyReported=true instead of overwriting it (spec §8 S6 — a
// duplicate MATCH_RESULT_REPORT must not double-count standings).
func (s *MatchStore) ReportResult(matchID string, result protocol.GameResult) (rec MatchRecord, alreadyReported bool, err error) {
	var doc matchStoreDoc
	err = s.file.Update(&doc, func() error {
		if doc.Matches == nil {
			doc.Matches = make(map[string]MatchRecord)
		}
		existing, ok := doc.Matches[matchID]
		if !ok {
			return fmt.Errorf("repo: match %s not found", matchID)
		}
		if existing.Reported {
			rec = existing
			alreadyReported = true
			return nil
		}
		existing.Reported = true
		existing.Result = &result
		doc.Matches[matchID] = existing
		rec = existing
		return nil
	})
	return rec, alreadyReported, err
}

func (s *MatchStore) AllForRound(roundID string) ([]MatchRecord, error) {
	var doc matchStoreDoc
	if err := s.file.Load(&doc); err != nil {
		return nil, err
	}
	var out []MatchRecord
	for _, m := range doc.Matches {
		if m.RoundID == roundID {
			out = append(out, m)
		}
	}
	return out, nil
}
