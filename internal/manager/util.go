package manager

import (
	"encoding/json"

	"github.com/oddeven-league/tournament-system/internal/protocol"
)

// encodeParams flattens an envelope and payload into the map shape the
// transport client sends as JSON-RPC "params" (spec §4.1 wire contract).
func encodeParams(env protocol.Envelope, payload interface{}) (map[string]interface{}, error) {
	raw, err := protocol.Encode(env, payload)
	if err != nil {
		return nil, err
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}
