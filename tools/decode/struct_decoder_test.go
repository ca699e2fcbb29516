package decode

import (
	"encoding/json"
	"testing"
)

type busEvent struct {
	To    string          `json:"to"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func TestDecodeJSONKeepsNestedPayloadRaw(t *testing.T) {
	raw := []byte(`{"to":"bob","event":"newMessage","data":{"msg_id":"42","body":"hello"}}`)

	ev, err := DecodeJSON[busEvent](raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.To != "bob" || ev.Event != "newMessage" {
		t.Fatalf("envelope fields = %+v", ev)
	}

	// The nested object survives as raw JSON, not a re-shaped map.
	var body map[string]string
	if err := json.Unmarshal(ev.Data, &body); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if body["msg_id"] != "42" || body["body"] != "hello" {
		t.Fatalf("data = %s", ev.Data)
	}
}

func TestDecodeMapWeakTyping(t *testing.T) {
	type payload struct {
		Seq   int64  `json:"seq"`
		Count int    `json:"count"`
		Name  string `json:"name"`
	}

	m := map[string]any{
		"seq":   float64(9007199254740), // JSON numbers arrive as float64
		"count": "3",
		"name":  "presence",
	}
	p, err := DecodeMap[payload](m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Seq != 9007199254740 || p.Count != 3 || p.Name != "presence" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestDecodeMapNil(t *testing.T) {
	if _, err := DecodeMap[busEvent](nil); err == nil {
		t.Fatal("nil map must be rejected")
	}
}
