package protocol

// RegistrationStatus values carried by the two *_REGISTER_RESPONSE payloads.
const (
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
)

// RoleInMatch values carried by GAME_INVITATION.
const (
	RoleInMatchA = "PLAYER_A"
	RoleInMatchB = "PLAYER_B"
)

// Parity choices. Schemas require lowercase enums (spec §4.1).
const (
	ParityEven = "even"
	ParityOdd  = "odd"
)

// Match result status values carried by GAME_OVER/MATCH_RESULT_REPORT.
const (
	ResultWin       = "WIN"
	ResultDraw      = "DRAW"
	ResultCancelled = "CANCELLED"
)

func missing(field string) error {
	return &RPCError{Code: ErrCodeMissingField, Message: "missing required field: " + field}
}

// RefereeMeta is the REFEREE_REGISTER_REQUEST payload's metadata block.
type RefereeMeta struct {
	DisplayName          string   `json:"display_name"`
	Version              string   `json:"version"`
	GameTypes            []string `json:"game_types"`
	ContactEndpoint      string   `json:"contact_endpoint"`
	MaxConcurrentMatches int      `json:"max_concurrent_matches"`
}

// RefereeRegisterRequest is message type 1.
type RefereeRegisterRequest struct {
	RefereeID   string      `json:"referee_id,omitempty"`
	RefereeMeta RefereeMeta `json:"referee_meta"`
}

func (p RefereeRegisterRequest) Validate() error {
	if p.RefereeMeta.DisplayName == "" {
		return missing("referee_meta.display_name")
	}
	if p.RefereeMeta.ContactEndpoint == "" {
		return missing("referee_meta.contact_endpoint")
	}
	if len(p.RefereeMeta.GameTypes) == 0 {
		return missing("referee_meta.game_types")
	}
	if p.RefereeMeta.MaxConcurrentMatches <= 0 {
		return missing("referee_meta.max_concurrent_matches")
	}
	return nil
}

// RefereeRegisterResponse is message type 2.
type RefereeRegisterResponse struct {
	Status           string `json:"status"`
	RefereeID        string `json:"referee_id,omitempty"`
	AuthToken        string `json:"auth_token,omitempty"`
	LeagueID         string `json:"league_id,omitempty"`
	RejectionReason  string `json:"rejection_reason,omitempty"`
}

func (p RefereeRegisterResponse) Validate() error {
	if p.Status != StatusAccepted && p.Status != StatusRejected {
		return missing("status")
	}
	return nil
}

// PlayerMeta is the LEAGUE_REGISTER_REQUEST payload's metadata block.
type PlayerMeta struct {
	DisplayName     string   `json:"display_name"`
	Version         string   `json:"version"`
	GameTypes       []string `json:"game_types"`
	ContactEndpoint string   `json:"contact_endpoint"`
}

// LeagueRegisterRequest is message type 3.
type LeagueRegisterRequest struct {
	PlayerID   string     `json:"player_id,omitempty"`
	PlayerMeta PlayerMeta `json:"player_meta"`
}

func (p LeagueRegisterRequest) Validate() error {
	if p.PlayerMeta.DisplayName == "" {
		return missing("player_meta.display_name")
	}
	if p.PlayerMeta.ContactEndpoint == "" {
		return missing("player_meta.contact_endpoint")
	}
	return nil
}

// LeagueRegisterResponse is message type 4.
type LeagueRegisterResponse struct {
	Status          string `json:"status"`
	PlayerID        string `json:"player_id,omitempty"`
	AuthToken       string `json:"auth_token,omitempty"`
	LeagueID        string `json:"league_id,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

func (p LeagueRegisterResponse) Validate() error {
	if p.Status != StatusAccepted && p.Status != StatusRejected {
		return missing("status")
	}
	return nil
}

// RoundMatchSummary is one entry of ROUND_ANNOUNCEMENT's matches[]. The
// two endpoint fields beyond the required set let the assigned referee
// reach each player directly without a further lookup round-trip.
type RoundMatchSummary struct {
	MatchID         string `json:"match_id"`
	GameType        string `json:"game_type"`
	PlayerAID       string `json:"player_A_id"`
	PlayerBID       string `json:"player_B_id"`
	RefereeEndpoint string `json:"referee_endpoint"`
	PlayerAEndpoint string `json:"player_a_endpoint,omitempty"`
	PlayerBEndpoint string `json:"player_b_endpoint,omitempty"`
}

// RoundAnnouncement is message type 5.
type RoundAnnouncement struct {
	RoundID  string              `json:"round_id"`
	LeagueID string              `json:"league_id"`
	Matches  []RoundMatchSummary `json:"matches"`
}

func (p RoundAnnouncement) Validate() error {
	if p.RoundID == "" {
		return missing("round_id")
	}
	if p.LeagueID == "" {
		return missing("league_id")
	}
	return nil
}

// RoundCompleted is message type 6.
type RoundCompleted struct {
	RoundID          string   `json:"round_id"`
	LeagueID         string   `json:"league_id"`
	CompletedMatches []string `json:"completed_matches"`
	NextRoundID      string   `json:"next_round_id,omitempty"`
}

func (p RoundCompleted) Validate() error {
	if p.RoundID == "" {
		return missing("round_id")
	}
	if p.LeagueID == "" {
		return missing("league_id")
	}
	return nil
}

// GameInvitation is message type 7. RefereeEndpoint is an addition
// beyond the required set, so the invited player knows where to send
// its GAME_JOIN_ACK and later CHOOSE_PARITY_RESPONSE back to.
type GameInvitation struct {
	MatchID         string `json:"match_id"`
	GameType        string `json:"game_type"`
	RoleInMatch     string `json:"role_in_match"`
	OpponentID      string `json:"opponent_id"`
	RefereeEndpoint string `json:"referee_endpoint,omitempty"`
}

func (p GameInvitation) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	if p.RoleInMatch != RoleInMatchA && p.RoleInMatch != RoleInMatchB {
		return missing("role_in_match")
	}
	return nil
}

// GameJoinAck is message type 8.
type GameJoinAck struct {
	MatchID         string `json:"match_id"`
	Accept          bool   `json:"accept"`
	ArrivalTimestamp string `json:"arrival_timestamp"`
}

func (p GameJoinAck) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	return nil
}

// ChooseParityContext is CHOOSE_PARITY_CALL's context block.
type ChooseParityContext struct {
	OpponentID string `json:"opponent_id"`
	RoundID    string `json:"round_id"`
}

// ChooseParityCall is message type 9.
type ChooseParityCall struct {
	MatchID  string               `json:"match_id"`
	GameType string               `json:"game_type"`
	Deadline string               `json:"deadline"`
	Context  ChooseParityContext  `json:"context"`
}

func (p ChooseParityCall) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	if p.Deadline == "" {
		return missing("deadline")
	}
	return nil
}

// ChooseParityResponse is message type 10. An out-of-enum ParityChoice
// is not a wire-schema error: the referee treats it as a missing
// answer for retry-counting purposes and reports it with GAME_ERROR
// (spec §4.8), so validation here only enforces the required field.
type ChooseParityResponse struct {
	MatchID      string `json:"match_id"`
	ParityChoice string `json:"parity_choice"`
}

func (p ChooseParityResponse) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	return nil
}

// ValidParity reports whether choice is one of the two valid parity enum values.
func ValidParity(choice string) bool {
	return choice == ParityEven || choice == ParityOdd
}

// GameResult is the result block shared by GAME_OVER and
// MATCH_RESULT_REPORT (spec §4.8 "Match report contract").
type GameResult struct {
	Status         string            `json:"status"`
	WinnerPlayerID string            `json:"winner_player_id,omitempty"`
	DrawnNumber    int               `json:"drawn_number"`
	NumberParity   string            `json:"number_parity"`
	Choices        map[string]string `json:"choices"`
	Reason         string            `json:"reason,omitempty"`
	Score          map[string]int    `json:"score,omitempty"`
}

func (p GameResult) Validate() error {
	switch p.Status {
	case ResultWin, ResultDraw, ResultCancelled:
	default:
		return missing("result.status")
	}
	return nil
}

// GameOver is message type 11.
type GameOver struct {
	MatchID    string     `json:"match_id"`
	GameResult GameResult `json:"game_result"`
}

func (p GameOver) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	return p.GameResult.Validate()
}

// MatchResultReport is message type 12.
type MatchResultReport struct {
	MatchID  string     `json:"match_id"`
	RoundID  string     `json:"round_id"`
	LeagueID string     `json:"league_id"`
	Result   GameResult `json:"result"`
}

func (p MatchResultReport) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	if p.RoundID == "" {
		return missing("round_id")
	}
	if p.LeagueID == "" {
		return missing("league_id")
	}
	return p.Result.Validate()
}

// StandingEntry is one row of LEAGUE_STANDINGS_UPDATE / LEAGUE_COMPLETED.
type StandingEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Played   int    `json:"played"`
	Wins     int    `json:"wins"`
	Draws    int    `json:"draws"`
	Losses   int    `json:"losses"`
	Points   int    `json:"points"`
}

// LeagueStandingsUpdate is message type 13.
type LeagueStandingsUpdate struct {
	LeagueID  string          `json:"league_id"`
	RoundID   string          `json:"round_id"`
	Standings []StandingEntry `json:"standings"`
}

func (p LeagueStandingsUpdate) Validate() error {
	if p.LeagueID == "" {
		return missing("league_id")
	}
	return nil
}

// LeagueCompleted is message type 14.
type LeagueCompleted struct {
	LeagueID       string          `json:"league_id"`
	TotalRounds    int             `json:"total_rounds"`
	TotalMatches   int             `json:"total_matches"`
	Champion       string          `json:"champion"`
	FinalStandings []StandingEntry `json:"final_standings"`
}

func (p LeagueCompleted) Validate() error {
	if p.LeagueID == "" {
		return missing("league_id")
	}
	return nil
}

// LeagueError is message type 15.
type LeagueError struct {
	ErrorCode        string                 `json:"error_code"`
	ErrorDescription string                 `json:"error_description"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

func (p LeagueError) Validate() error {
	if p.ErrorCode == "" {
		return missing("error_code")
	}
	return nil
}

// GameError is message type 16.
type GameError struct {
	MatchID          string `json:"match_id"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	AffectedPlayer   string `json:"affected_player,omitempty"`
	ActionRequired   string `json:"action_required,omitempty"`
	RetryCount       int    `json:"retry_count"`
	MaxRetries       int    `json:"max_retries"`
	Consequence      string `json:"consequence,omitempty"`
}

func (p GameError) Validate() error {
	if p.MatchID == "" {
		return missing("match_id")
	}
	if p.ErrorCode == "" {
		return missing("error_code")
	}
	return nil
}
