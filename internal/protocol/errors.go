package protocol

import "errors"

// Stable error code strings carried in LEAGUE_ERROR/GAME_ERROR payloads
// and used to classify failures (spec §6/§7).
const (
	ErrCodeTimeout             = "TIMEOUT_ERROR"
	ErrCodeInvalidChoice       = "INVALID_CHOICE"
	ErrCodeMissingField        = "MISSING_REQUIRED_FIELD"
	ErrCodeConnection          = "CONNECTION_ERROR"
	ErrCodeAuthTokenMissing    = "AUTH_TOKEN_MISSING"
	ErrCodeAuthTokenInvalid    = "AUTH_TOKEN_INVALID"
	ErrCodePlayerNotFound      = "PLAYER_NOT_FOUND"
	ErrCodeLeagueNotFound      = "LEAGUE_NOT_FOUND"
	ErrCodePlayerNotRegistered = "PLAYER_NOT_REGISTERED"
)

// Package-level sentinels for errors.Is matching at component
// boundaries (spec §7 taxonomy).
var (
	ErrProtocol          = errors.New("protocol error")
	ErrAuthTokenMissing  = errors.New(ErrCodeAuthTokenMissing)
	ErrAuthTokenInvalid  = errors.New(ErrCodeAuthTokenInvalid)
	ErrPlayerNotFound    = errors.New(ErrCodePlayerNotFound)
	ErrLeagueNotFound    = errors.New(ErrCodeLeagueNotFound)
	ErrPlayerNotRegistered = errors.New(ErrCodePlayerNotRegistered)
)

// RPCError is returned by a handler when the caller's request is
// rejected without a state change (spec §7 "Protocol/Authentication
// errors: reject ... no state change").
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string { return e.Code + ": " + e.Message }

func NewRPCError(code, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}
