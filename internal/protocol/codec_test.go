package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTripsChooseParityResponse(t *testing.T) {
	env := validEnvelope(MsgChooseParityResponse)
	payload := ChooseParityResponse{MatchID: "m1", ParityChoice: ParityOdd}

	raw, err := Encode(env, payload)
	require.NoError(t, err)

	gotEnv, gotPayload, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, env.ConversationID, gotEnv.ConversationID)

	resp, ok := gotPayload.(ChooseParityResponse)
	require.True(t, ok)
	assert.Equal(t, payload, resp)
}

func TestDecodeRejectsUnknownMessageType(t *testing.T) {
	env := validEnvelope("NOT_A_REAL_TYPE")
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, _, err = Decode(raw)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeAllowsOutOfEnumChoiceForRefereeToHandle(t *testing.T) {
	env := validEnvelope(MsgChooseParityResponse)
	payload := ChooseParityResponse{MatchID: "m1", ParityChoice: "sideways"}

	raw, err := Encode(env, payload)
	require.NoError(t, err)

	_, gotPayload, err := Decode(raw)
	require.NoError(t, err)
	resp, ok := gotPayload.(ChooseParityResponse)
	require.True(t, ok)
	assert.Equal(t, "sideways", resp.ParityChoice)
	assert.False(t, ValidParity(resp.ParityChoice))
}

func TestDecodeRejectsMissingRequiredField(t *testing.T) {
	env := validEnvelope(MsgGameJoinAck)
	payload := GameJoinAck{Accept: true}

	raw, err := Encode(env, payload)
	require.NoError(t, err)

	_, _, err = Decode(raw)
	require.Error(t, err)
	rpcErr, ok := err.(*RPCError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMissingField, rpcErr.Code)
}

func TestMethodForMessageType(t *testing.T) {
	method, ok := MethodForMessageType(MsgMatchResultReport)
	require.True(t, ok)
	assert.Equal(t, MethodReportMatchResult, method)

	_, ok = MethodForMessageType("LEAGUE_REGISTER_RESPONSE")
	assert.False(t, ok)
}
