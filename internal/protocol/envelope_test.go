package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseSender(t *testing.T) {
	s := FormatSender(RolePlayer, "p1")
	assert.Equal(t, "player:p1", s)

	role, id, err := ParseSender(s)
	require.NoError(t, err)
	assert.Equal(t, RolePlayer, role)
	assert.Equal(t, "p1", id)
}

func TestParseSenderAcceptsBareLeagueManager(t *testing.T) {
	role, id, err := ParseSender(RoleLeagueManager)
	require.NoError(t, err)
	assert.Equal(t, RoleLeagueManager, role)
	assert.Equal(t, RoleLeagueManager, id)
}

func TestParseSenderRejectsUnknownRole(t *testing.T) {
	_, _, err := ParseSender("spectator:bob")
	assert.Error(t, err)
}

func TestParseSenderRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "player", "player:", ":p1"} {
		_, _, err := ParseSender(bad)
		assert.Errorf(t, err, "expected error for sender %q", bad)
	}
}

func validEnvelope(messageType string) Envelope {
	return Envelope{
		Protocol:       ProtocolName,
		MessageType:    messageType,
		Sender:         FormatSender(RolePlayer, "p1"),
		Timestamp:      NowTimestamp(),
		ConversationID: "conv-1",
		AuthToken:      "tok",
	}
}

func TestEnvelopeValidate(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck)
	assert.NoError(t, env.Validate())
}

func TestEnvelopeValidateRejectsWrongProtocol(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck)
	env.Protocol = "league.v1"
	assert.ErrorIs(t, env.Validate(), ErrProtocol)
}

func TestEnvelopeValidateRejectsBadTimestamp(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck)
	env.Timestamp = "2026-08-02 10:00:00"
	assert.Error(t, env.Validate())
}

func TestEnvelopeValidateRequiresTokenExceptOnRegistration(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck)
	env.AuthToken = ""
	assert.ErrorIs(t, env.Validate(), ErrAuthTokenMissing)

	reg := validEnvelope(MsgRefereeRegisterRequest)
	reg.AuthToken = ""
	assert.NoError(t, reg.Validate())
}

func TestEnvelopeValidateRequiresConversationID(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck)
	env.ConversationID = ""
	assert.Error(t, env.Validate())
}
