package protocol

import (
	"encoding/json"
	"fmt"
)

// payloadValidator is satisfied by every payload struct in payloads.go.
type payloadValidator interface {
	Validate() error
}

// Decode parses a JSON-RPC "params" object into its envelope and typed
// payload. Routing is a total switch over MessageType — every payload
// variant the catalogue declares is a case; an unrecognized type is a
// PROTOCOL_ERROR rather than silently ignored (spec §4.1).
func Decode(raw []byte) (Envelope, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("%w: malformed envelope: %v", ErrProtocol, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, nil, err
	}

	payload, err := decodePayload(env.MessageType, raw)
	if err != nil {
		return Envelope{}, nil, err
	}
	return env, payload, nil
}

func decodePayload(messageType string, raw []byte) (interface{}, error) {
	var v payloadValidator
	switch messageType {
	case MsgRefereeRegisterRequest:
		v = new(RefereeRegisterRequest)
	case MsgRefereeRegisterResponse:
		v = new(RefereeRegisterResponse)
	case MsgLeagueRegisterRequest:
		v = new(LeagueRegisterRequest)
	case MsgLeagueRegisterResponse:
		v = new(LeagueRegisterResponse)
	case MsgRoundAnnouncement:
		v = new(RoundAnnouncement)
	case MsgRoundCompleted:
		v = new(RoundCompleted)
	case MsgGameInvitation:
		v = new(GameInvitation)
	case MsgGameJoinAck:
		v = new(GameJoinAck)
	case MsgChooseParityCall:
		v = new(ChooseParityCall)
	case MsgChooseParityResponse:
		v = new(ChooseParityResponse)
	case MsgGameOver:
		v = new(GameOver)
	case MsgMatchResultReport:
		v = new(MatchResultReport)
	case MsgLeagueStandingsUpdate:
		v = new(LeagueStandingsUpdate)
	case MsgLeagueCompleted:
		v = new(LeagueCompleted)
	case MsgLeagueError:
		v = new(LeagueError)
	case MsgGameError:
		v = new(GameError)
	default:
		return nil, fmt.Errorf("%w: unknown message_type %q", ErrProtocol, messageType)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%w: payload decode failed for %s: %v", ErrProtocol, messageType, err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	// dereference back to the concrete value, not the pointer, for a
	// cleaner caller-facing type switch.
	return derefPayload(v), nil
}

func derefPayload(v payloadValidator) interface{} {
	switch p := v.(type) {
	case *RefereeRegisterRequest:
		return *p
	case *RefereeRegisterResponse:
		return *p
	case *LeagueRegisterRequest:
		return *p
	case *LeagueRegisterResponse:
		return *p
	case *RoundAnnouncement:
		return *p
	case *RoundCompleted:
		return *p
	case *GameInvitation:
		return *p
	case *GameJoinAck:
		return *p
	case *ChooseParityCall:
		return *p
	case *ChooseParityResponse:
		return *p
	case *GameOver:
		return *p
	case *MatchResultReport:
		return *p
	case *LeagueStandingsUpdate:
		return *p
	case *LeagueCompleted:
		return *p
	case *LeagueError:
		return *p
	case *GameError:
		return *p
	default:
		return v
	}
}

// Encode merges an envelope and a payload into one flat JSON object,
// the shape the wire format requires (envelope fields sit alongside
// payload fields in the same "params" object, not nested under a key).
func Encode(env Envelope, payload interface{}) ([]byte, error) {
	envBytes, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(envBytes, &merged); err != nil {
		return nil, err
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return nil, err
	}
	for k, v := range payloadMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// MethodForMessageType returns the JSON-RPC method name a given
// message_type is delivered under (spec §6).
func MethodForMessageType(messageType string) (string, bool) {
	switch messageType {
	case MsgRefereeRegisterRequest:
		return MethodRegisterReferee, true
	case MsgLeagueRegisterRequest:
		return MethodRegisterPlayer, true
	case MsgMatchResultReport:
		return MethodReportMatchResult, true
	case MsgRoundAnnouncement:
		return MethodNotifyRound, true
	case MsgRoundCompleted:
		return MethodNotifyRoundCompleted, true
	case MsgLeagueCompleted:
		return MethodNotifyLeagueCompleted, true
	case MsgLeagueStandingsUpdate:
		return MethodNotifyStandingsUpdate, true
	case MsgGameInvitation:
		return MethodGameInvitation, true
	case MsgGameJoinAck:
		return MethodGameJoinAck, true
	case MsgChooseParityCall:
		return MethodChooseParityCall, true
	case MsgChooseParityResponse:
		return MethodChooseParityResponse, true
	case MsgGameOver:
		return MethodGameOver, true
	case MsgLeagueError:
		return MethodLeagueError, true
	case MsgGameError:
		return MethodGameError, true
	default:
		return "", false
	}
}
