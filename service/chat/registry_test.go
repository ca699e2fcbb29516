package chat

import (
	"sort"
	"testing"
	"time"
)

func testClient(connID, userID string) *Client {
	return NewClient(connID, userID, nil, 8)
}

func TestRegisterReplacesOlderConnection(t *testing.T) {
	reg := NewRegistry()

	c1 := testClient("conn1", "alice")
	c2 := testClient("conn2", "alice")

	if replaced := reg.Register("alice", "conn1", "ua1", c1); replaced != nil {
		t.Fatalf("first register replaced something: %v", replaced.ConnID)
	}
	replaced := reg.Register("alice", "conn2", "ua2", c2)
	if replaced != c1 {
		t.Fatalf("second register must hand back the first client, got %v", replaced)
	}

	if reg.Size() != 1 {
		t.Fatalf("registry must hold at most one entry per user, size=%d", reg.Size())
	}
	got, ok := reg.Lookup("alice")
	if !ok || got != c2 {
		t.Fatalf("lookup must return the newest connection")
	}
}

func TestUnregisterGuardedByConnID(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "conn1", "", testClient("conn1", "alice"))
	c2 := testClient("conn2", "alice")
	reg.Register("alice", "conn2", "", c2)

	// A stale disconnect handler from conn1 must not remove conn2's entry.
	if reg.Unregister("alice", "conn1") {
		t.Fatal("unregister with stale conn id must be a no-op")
	}
	got, ok := reg.Lookup("alice")
	if !ok || got != c2 {
		t.Fatal("newer entry must survive the stale unregister")
	}

	if !reg.Unregister("alice", "conn2") {
		t.Fatal("matching unregister must remove the entry")
	}
	if _, ok := reg.Lookup("alice"); ok {
		t.Fatal("entry must be gone after unregister")
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("bob", "conn1", "", testClient("conn1", "bob"))

	if !reg.Unregister("bob", "conn1") {
		t.Fatal("first unregister must succeed")
	}
	if reg.Unregister("bob", "conn1") {
		t.Fatal("second unregister must be a no-op returning false")
	}
}

func TestSnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "c1", "", testClient("c1", "alice"))
	reg.Register("bob", "c2", "", testClient("c2", "bob"))

	snap := reg.Snapshot()
	sort.Strings(snap)
	if len(snap) != 2 || snap[0] != "alice" || snap[1] != "bob" {
		t.Fatalf("snapshot = %v, want [alice bob]", snap)
	}
}

func TestEntriesOlderThan(t *testing.T) {
	now := time.Now()
	cur := now
	reg := NewRegistryWithClock(func() time.Time { return cur })

	reg.Register("old", "c1", "", testClient("c1", "old"))
	cur = now.Add(31 * time.Minute)
	reg.Register("fresh", "c2", "", testClient("c2", "fresh"))

	stale := reg.EntriesOlderThan(30 * time.Minute)
	if len(stale) != 1 || stale[0].UserID != "old" {
		t.Fatalf("stale = %v, want exactly the old entry", stale)
	}
}

func TestTouchRefreshesActivity(t *testing.T) {
	now := time.Now()
	cur := now
	reg := NewRegistryWithClock(func() time.Time { return cur })

	reg.Register("alice", "c1", "", testClient("c1", "alice"))

	cur = now.Add(29 * time.Minute)
	reg.Touch("alice", "c1")
	cur = now.Add(45 * time.Minute)

	if stale := reg.EntriesOlderThan(30 * time.Minute); len(stale) != 0 {
		t.Fatalf("touched entry must not be stale, got %v", stale)
	}

	// Touch with a stale conn id must not refresh anything.
	cur = now.Add(80 * time.Minute)
	reg.Touch("alice", "wrong-conn")
	if stale := reg.EntriesOlderThan(30 * time.Minute); len(stale) != 1 {
		t.Fatal("entry must be stale, mismatched touch must not refresh")
	}
}
