package gateway

import (
	"encoding/json"

	"github.com/saltmark/hunt-server/internal/util"
)

// decodePayload unmarshals an envelope's payload, logging and reporting
// failure rather than panicking; malformed JoinRoom frames count against the
// sender's malformed-request score the same way a bad mining.authorize did.
func decodePayload(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		util.Debugf("gateway: malformed payload: %v", err)
		return false
	}
	return true
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		util.Errorf("gateway: marshal error: %v", err)
		return nil
	}
	return b
}
