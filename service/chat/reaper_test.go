package chat

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReaperEvictsIdleEntry(t *testing.T) {
	now := time.Now()
	cur := now
	reg := NewRegistryWithClock(func() time.Time { return cur })
	disp := NewDispatcher(reg)
	defer disp.Close()

	idle := testClient("c1", "idler")
	reg.Register("idler", "c1", "", idle)
	cur = now.Add(31 * time.Minute)
	alive := testClient("c2", "watcher")
	reg.Register("watcher", "c2", "", alive)

	r := NewReaper(reg, disp, time.Minute, 30*time.Minute)
	if n := r.SweepOnce(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}

	if _, ok := reg.Lookup("idler"); ok {
		t.Fatal("idle entry must be removed")
	}
	if !idle.Closed() {
		t.Fatal("evicted connection must receive a forced-close signal")
	}

	// Exactly one presence broadcast per sweep, reflecting the absence.
	f := recvFrame(t, alive, time.Second)
	if f.Event != EventOnlineUsers {
		t.Fatalf("event = %q, want %q", f.Event, EventOnlineUsers)
	}
	var users []string
	if err := json.Unmarshal(f.Payload, &users); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(users) != 1 || users[0] != "watcher" {
		t.Fatalf("online users = %v, want [watcher]", users)
	}
	select {
	case raw := <-alive.Send:
		t.Fatalf("unexpected second broadcast: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReaperSweepNothingStale(t *testing.T) {
	reg := NewRegistry()
	disp := NewDispatcher(reg)
	defer disp.Close()

	c := testClient("c1", "alice")
	reg.Register("alice", "c1", "", c)

	r := NewReaper(reg, disp, time.Minute, 30*time.Minute)
	if n := r.SweepOnce(); n != 0 {
		t.Fatalf("evicted %d, want 0", n)
	}
	select {
	case raw := <-c.Send:
		t.Fatalf("no broadcast expected on an empty sweep, got %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReaperEvictionIsolation(t *testing.T) {
	now := time.Now()
	cur := now
	reg := NewRegistryWithClock(func() time.Time { return cur })
	disp := NewDispatcher(reg)
	defer disp.Close()

	reg.Register("bad", "c1", "", testClient("c1", "bad"))
	good := testClient("c2", "good")
	reg.Register("good", "c2", "", good)
	cur = now.Add(31 * time.Minute)

	r := NewReaper(reg, disp, time.Minute, 30*time.Minute)
	r.closer = func(e *Entry) {
		if e.UserID == "bad" {
			panic("close blew up")
		}
		r.evict(e)
	}

	if n := r.SweepOnce(); n != 1 {
		t.Fatalf("evicted %d, want the non-failing one", n)
	}
	if _, ok := reg.Lookup("good"); ok {
		t.Fatal("healthy eviction must not be blocked by a failing one")
	}
	if _, ok := reg.Lookup("bad"); !ok {
		t.Fatal("failed eviction leaves the entry for the next sweep")
	}
}

func TestReaperSkipsReconnectedUser(t *testing.T) {
	now := time.Now()
	cur := now
	reg := NewRegistryWithClock(func() time.Time { return cur })
	disp := NewDispatcher(reg)
	defer disp.Close()

	reg.Register("alice", "c1", "", testClient("c1", "alice"))
	r := NewReaper(reg, disp, time.Minute, 30*time.Minute)

	stale := reg.EntriesOlderThan(0) // grab the scan result first
	if len(stale) != 1 {
		t.Fatal("expected one entry in scan")
	}

	// User reconnects between scan and eviction.
	fresh := testClient("c2", "alice")
	reg.Register("alice", "c2", "", fresh)

	r.evict(stale[0])
	got, ok := reg.Lookup("alice")
	if !ok || got != fresh {
		t.Fatal("eviction of a superseded entry must not remove the new connection")
	}
}

func TestReaperStartStop(t *testing.T) {
	now := time.Now()
	cur := now
	reg := NewRegistryWithClock(func() time.Time { return cur })
	disp := NewDispatcher(reg)
	defer disp.Close()

	c := testClient("c1", "alice")
	reg.Register("alice", "c1", "", c)
	cur = now.Add(time.Hour)

	r := NewReaper(reg, disp, 10*time.Millisecond, 30*time.Minute)
	r.Start()
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Lookup("alice"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("running reaper never evicted the idle entry")
}
