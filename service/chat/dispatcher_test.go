package chat

import (
	"encoding/json"
	"testing"
	"time"
)

func recvFrame(t *testing.T, c *Client, timeout time.Duration) *EventFrame {
	t.Helper()
	select {
	case raw := <-c.Send:
		f := &EventFrame{}
		if err := json.Unmarshal(raw, f); err != nil {
			t.Fatalf("bad frame %q: %v", raw, err)
		}
		return f
	case <-time.After(timeout):
		t.Fatal("no frame received in time")
		return nil
	}
}

func TestDeliverToRegisteredUser(t *testing.T) {
	reg := NewRegistry()
	disp := NewDispatcher(reg)
	defer disp.Close()

	c := testClient("c1", "bob")
	reg.Register("bob", "c1", "", c)

	payload := json.RawMessage(`{"msg_id":"1","body":"hi"}`)
	if !disp.Deliver("bob", EventNewMessage, payload) {
		t.Fatal("deliver to a registered user must return true")
	}

	f := recvFrame(t, c, time.Second)
	if f.Event != EventNewMessage {
		t.Fatalf("event = %q, want %q", f.Event, EventNewMessage)
	}
	if string(f.Payload) != string(payload) {
		t.Fatalf("payload forwarded = %s, want %s verbatim", f.Payload, payload)
	}
}

func TestDeliverAbsentTarget(t *testing.T) {
	reg := NewRegistry()
	disp := NewDispatcher(reg)
	defer disp.Close()

	if disp.Deliver("ghost", EventNewMessage, json.RawMessage(`{}`)) {
		t.Fatal("deliver to an unregistered user must return false, not error")
	}
}

func TestDeliverFullQueueDrops(t *testing.T) {
	reg := NewRegistry()
	disp := NewDispatcher(reg)
	defer disp.Close()

	c := NewClient("c1", "bob", nil, 1)
	reg.Register("bob", "c1", "", c)

	if !disp.Deliver("bob", EventNewMessage, json.RawMessage(`{"n":1}`)) {
		t.Fatal("first deliver must fit the queue")
	}
	if disp.Deliver("bob", EventNewMessage, json.RawMessage(`{"n":2}`)) {
		t.Fatal("deliver into a full queue must report a drop")
	}
}

func TestBroadcastPresenceReachesAll(t *testing.T) {
	reg := NewRegistry()
	disp := NewDispatcher(reg)
	defer disp.Close()

	ca := testClient("c1", "alice")
	cb := testClient("c2", "bob")
	reg.Register("alice", "c1", "", ca)
	reg.Register("bob", "c2", "", cb)

	disp.BroadcastPresence()

	for _, c := range []*Client{ca, cb} {
		f := recvFrame(t, c, time.Second)
		if f.Event != EventOnlineUsers {
			t.Fatalf("event = %q, want %q", f.Event, EventOnlineUsers)
		}
		var users []string
		if err := json.Unmarshal(f.Payload, &users); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("online users = %v, want both", users)
		}
	}
}
