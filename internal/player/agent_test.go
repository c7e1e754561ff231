package player

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddeven-league/tournament-system/internal/config"
	"github.com/oddeven-league/tournament-system/internal/logging"
	"github.com/oddeven-league/tournament-system/internal/protocol"
	"github.com/oddeven-league/tournament-system/internal/repo"
	"github.com/oddeven-league/tournament-system/internal/transport"
)

func testAgent(t *testing.T, strategy Strategy) *Agent {
	t.Helper()
	cfg := &config.Config{Timeouts: config.Timeouts{Generic: time.Second}}
	rpc := transport.NewClient(time.Second, 0, time.Millisecond, 5, time.Second, 1)
	logger, err := logging.New("player-test", os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })

	history := repo.NewPlayerHistoryRepo(filepath.Join(t.TempDir(), "history.json"))
	return NewAgent("p1", "http://player", "Player One", []string{"even_odd"}, strategy, history, cfg, rpc, logger)
}

func inboundEnvelope(matchID, messageType string) protocol.Envelope {
	return protocol.Envelope{
		Protocol:       protocol.ProtocolName,
		MessageType:    messageType,
		Sender:         protocol.FormatSender(protocol.RoleReferee, "ref1"),
		Timestamp:      protocol.NowTimestamp(),
		ConversationID: matchID,
		AuthToken:      "referee-issued-token",
	}
}

func TestHandleGameInvitationSendsJoinAckToReferee(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		var method string
		_ = json.Unmarshal(body["method"], &method)
		received <- method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{},"id":"1"}`))
	}))
	defer srv.Close()

	agent := testAgent(t, AlwaysEvenStrategy{})
	inv := protocol.GameInvitation{
		MatchID:         "m1",
		GameType:        "even_odd",
		RoleInMatch:     protocol.RoleInMatchA,
		OpponentID:      "p2",
		RefereeEndpoint: srv.URL,
	}

	_, respPayload, err := agent.HandleGameInvitation(nil, inboundEnvelope("m1", protocol.MsgGameInvitation), inv)
	require.NoError(t, err)
	ack, ok := respPayload.(protocol.GameJoinAck)
	require.True(t, ok)
	assert.True(t, ack.Accept)

	select {
	case method := <-received:
		assert.Equal(t, protocol.MethodGameJoinAck, method)
	case <-time.After(time.Second):
		t.Fatal("referee never received GAME_JOIN_ACK")
	}
}

func TestHandleChooseParityCallSendsResponseToReferee(t *testing.T) {
	received := make(chan map[string]json.RawMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{},"id":"1"}`))
	}))
	defer srv.Close()

	agent := testAgent(t, AlwaysEvenStrategy{})
	inv := protocol.GameInvitation{MatchID: "m1", RoleInMatch: protocol.RoleInMatchA, OpponentID: "p2", RefereeEndpoint: srv.URL}
	_, _, err := agent.HandleGameInvitation(nil, inboundEnvelope("m1", protocol.MsgGameInvitation), inv)
	require.NoError(t, err)

	call := protocol.ChooseParityCall{
		MatchID:  "m1",
		GameType: "even_odd",
		Deadline: protocol.NowTimestamp(),
		Context:  protocol.ChooseParityContext{OpponentID: "p2", RoundID: "r1"},
	}
	_, respPayload, err := agent.HandleChooseParityCall(nil, inboundEnvelope("m1", protocol.MsgChooseParityCall), call)
	require.NoError(t, err)
	resp, ok := respPayload.(protocol.ChooseParityResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.ParityEven, resp.ParityChoice)

	select {
	case body := <-received:
		var method string
		_ = json.Unmarshal(body["method"], &method)
		assert.Equal(t, protocol.MethodChooseParityResponse, method)
		var params protocol.ChooseParityResponse
		_ = json.Unmarshal(body["params"], &params)
		assert.Equal(t, protocol.ParityEven, params.ParityChoice)
	case <-time.After(time.Second):
		t.Fatal("referee never received CHOOSE_PARITY_RESPONSE")
	}
}

func TestHandleGameOverAppendsHistoryAndForgetsMatch(t *testing.T) {
	agent := testAgent(t, AlwaysEvenStrategy{})
	inv := protocol.GameInvitation{MatchID: "m1", RoleInMatch: protocol.RoleInMatchA, OpponentID: "p2"}
	_, _, err := agent.HandleGameInvitation(nil, inboundEnvelope("m1", protocol.MsgGameInvitation), inv)
	require.NoError(t, err)

	over := protocol.GameOver{
		MatchID: "m1",
		GameResult: protocol.GameResult{
			Status:      protocol.ResultWin,
			DrawnNumber: 4,
			Choices:     map[string]string{"p1": protocol.ParityEven, "p2": protocol.ParityOdd},
		},
	}
	_, _, err = agent.HandleGameOver(nil, inboundEnvelope("m1", protocol.MsgGameOver), over)
	require.NoError(t, err)

	entries, err := agent.history.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p2", entries[0].OpponentID)
	assert.Equal(t, protocol.ParityEven, entries[0].OwnChoice)

	agent.mu.Lock()
	_, stillTracked := agent.matches["m1"]
	agent.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestHandleInformationalEchoesPayload(t *testing.T) {
	agent := testAgent(t, AlwaysEvenStrategy{})
	env := inboundEnvelope("", protocol.MsgRoundAnnouncement)
	payload := protocol.RoundAnnouncement{RoundID: "r1", LeagueID: "league-1"}

	gotEnv, gotPayload, err := agent.HandleInformational(nil, env, payload)
	require.NoError(t, err)
	assert.Equal(t, env, gotEnv)
	assert.Equal(t, payload, gotPayload)
}
