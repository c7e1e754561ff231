// Package protocol implements the league.v2 message envelope and its
// sixteen typed payload variants (spec §4.1, §6). Routing by
// message_type is a total function over a closed set of variants
// rather than a dictionary-of-handlers dispatch, so new types cannot
// silently fall through unhandled.
package protocol

import (
	"fmt"
	"strings"
	"time"
)

// ProtocolName is the only value the "protocol" envelope field may carry.
const ProtocolName = "league.v2"

// Roles. The manager's role is historically spelled two ways in the
// source material ("league_manager" and "league_manager:<id>"); both
// are accepted on ingress, but this package always emits the qualified
// form (RoleLeagueManager + ":" + agent id).
const (
	RolePlayer        = "player"
	RoleReferee       = "referee"
	RoleLeagueManager = "league_manager"
)

// Message types, one constant per payload variant in the catalogue
// (spec §6).
const (
	MsgRefereeRegisterRequest  = "REFEREE_REGISTER_REQUEST"
	MsgRefereeRegisterResponse = "REFEREE_REGISTER_RESPONSE"
	MsgLeagueRegisterRequest   = "LEAGUE_REGISTER_REQUEST"
	MsgLeagueRegisterResponse  = "LEAGUE_REGISTER_RESPONSE"
	MsgRoundAnnouncement       = "ROUND_ANNOUNCEMENT"
	MsgRoundCompleted          = "ROUND_COMPLETED"
	MsgGameInvitation          = "GAME_INVITATION"
	MsgGameJoinAck             = "GAME_JOIN_ACK"
	MsgChooseParityCall        = "CHOOSE_PARITY_CALL"
	MsgChooseParityResponse    = "CHOOSE_PARITY_RESPONSE"
	MsgGameOver                = "GAME_OVER"
	MsgMatchResultReport       = "MATCH_RESULT_REPORT"
	MsgLeagueStandingsUpdate   = "LEAGUE_STANDINGS_UPDATE"
	MsgLeagueCompleted         = "LEAGUE_COMPLETED"
	MsgLeagueError             = "LEAGUE_ERROR"
	MsgGameError               = "GAME_ERROR"
)

// JSON-RPC method names, one per inbound message type (spec §6).
const (
	MethodRegisterReferee          = "register_referee"
	MethodRegisterPlayer           = "register_player"
	MethodReportMatchResult        = "report_match_result"
	MethodStartLeague              = "start_league"
	MethodNotifyRound               = "notify_round"
	MethodNotifyRoundCompleted     = "notify_round_completed"
	MethodNotifyLeagueCompleted    = "notify_league_completed"
	MethodNotifyStandingsUpdate    = "notify_standings_update"
	MethodGameInvitation           = "game_invitation"
	MethodGameJoinAck              = "game_join_ack"
	MethodChooseParityCall         = "choose_parity_call"
	MethodChooseParityResponse     = "choose_parity_response"
	MethodGameOver                 = "game_over"
	MethodLeagueError              = "league_error"
	MethodGameError                = "game_error"
)

// Envelope carries the fields present on every league.v2 message,
// alongside whichever payload the message_type calls for (spec §3).
type Envelope struct {
	Protocol       string `json:"protocol"`
	MessageType    string `json:"message_type"`
	Sender         string `json:"sender"`
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id"`
	AuthToken      string `json:"auth_token"`
}

// FormatSender builds the qualified "<role>:<id>" sender string.
func FormatSender(role, agentID string) string {
	return role + ":" + agentID
}

// ParseSender splits a sender string into role and agent id. It
// accepts both "league_manager" and "league_manager:<id>" for the
// manager role (spec §9 open question); every other role requires the
// qualified form.
func ParseSender(sender string) (role, agentID string, err error) {
	sender = strings.TrimSpace(sender)
	if sender == RoleLeagueManager {
		return RoleLeagueManager, RoleLeagueManager, nil
	}
	parts := strings.SplitN(sender, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: sender %q is not of the form <role>:<id>", ErrProtocol, sender)
	}
	role, agentID = parts[0], parts[1]
	switch role {
	case RolePlayer, RoleReferee, RoleLeagueManager:
		return role, agentID, nil
	default:
		return "", "", fmt.Errorf("%w: unknown role %q", ErrProtocol, role)
	}
}

// requiresNoToken reports whether the message type is one of the two
// registration requests, which carry an empty auth_token (spec §4.2).
func requiresNoToken(messageType string) bool {
	return messageType == MsgRefereeRegisterRequest || messageType == MsgLeagueRegisterRequest
}

// Validate checks the envelope fields that apply universally,
// independent of the payload schema (spec §4.1).
func (e Envelope) Validate() error {
	if e.Protocol != ProtocolName {
		return fmt.Errorf("%w: protocol must be %q, got %q", ErrProtocol, ProtocolName, e.Protocol)
	}
	if e.MessageType == "" {
		return fmt.Errorf("%w: missing message_type", ErrProtocol)
	}
	if _, _, err := ParseSender(e.Sender); err != nil {
		return err
	}
	if err := validateTimestamp(e.Timestamp); err != nil {
		return err
	}
	if e.ConversationID == "" {
		return fmt.Errorf("%w: missing conversation_id", ErrProtocol)
	}
	if e.AuthToken == "" && !requiresNoToken(e.MessageType) {
		return ErrAuthTokenMissing
	}
	return nil
}

// validateTimestamp requires a UTC instant with an explicit "Z" suffix
// (spec §4.1 — "not a valid UTC instant with Z suffix" is a protocol error).
func validateTimestamp(ts string) error {
	if !strings.HasSuffix(ts, "Z") {
		return fmt.Errorf("%w: timestamp %q must end in Z", ErrProtocol, ts)
	}
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		return fmt.Errorf("%w: timestamp %q is not RFC3339: %v", ErrProtocol, ts, err)
	}
	return nil
}

// NowTimestamp formats the current instant per the envelope contract.
func NowTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
