package notify

import "github.com/goccy/go-json"

// DefaultChannel is the pub/sub channel ready notifications travel on.
const DefaultChannel = "briefing:ready"

// ReadyMessage announces that a briefing finished generating. It carries only
// the key; subscribers re-read the briefing themselves.
type ReadyMessage struct {
	Key string `json:"key"`
}

func encodeReady(key string) ([]byte, error) {
	return json.Marshal(ReadyMessage{Key: key})
}
