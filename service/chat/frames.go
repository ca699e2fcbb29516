package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outbound event names. Payloads are forwarded verbatim; the gateway never
// inspects message or notification bodies.
const (
	EventOnlineUsers  = "onlineUsers"
	EventNewMessage   = "newMessage"
	EventNotification = "notification"
)

// EventFrame is the outbound envelope written to the websocket.
type EventFrame struct {
	Event   string          `json:"event"`
	Ts      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func EncodeEvent(event string, payload json.RawMessage) ([]byte, error) {
	f := EventFrame{Event: event, Ts: time.Now().UnixMilli(), Payload: payload}
	return json.Marshal(f)
}

// EncodeOnlineUsers builds the presence broadcast frame.
func EncodeOnlineUsers(users []string) ([]byte, error) {
	raw, err := json.Marshal(users)
	if err != nil {
		return nil, err
	}
	return EncodeEvent(EventOnlineUsers, raw)
}

// Inbound client frame types.
const (
	FramePing   = "ping"
	FrameLogout = "logout" // client-initiated "log me out here" signal
)

type ClientFrame struct {
	Type string `json:"type"`
}

func ParseClientFrame(raw []byte) (*ClientFrame, error) {
	f := &ClientFrame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return f, nil
}
