package chat

import (
	"encoding/json"
	"sync"

	"DMChat/logger"
)

// Dispatcher pushes events to live connections. It reads the registry and
// never mutates it. Delivery is best-effort: an absent target or a full
// send queue means the event is dropped; durability belongs to the caller
// (the message is already persisted before delivery is attempted).
type Dispatcher struct {
	reg *Registry
	fan *fanout
}

func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{
		reg: reg,
		fan: newFanout(4, 1024),
	}
}

// Deliver sends payload tagged with event to the target user's live
// connection. Returns whether the user was registered and the frame was
// queued. A deliver racing an in-flight unregister may see either state;
// callers tolerate the dropped delivery.
func (d *Dispatcher) Deliver(user, event string, payload json.RawMessage) bool {
	c, ok := d.reg.Lookup(user)
	if !ok {
		return false
	}
	frame, err := EncodeEvent(event, payload)
	if err != nil {
		logger.Errorf("[dispatch] encode event=%s user=%s err=%v", event, user, err)
		return false
	}
	if !c.enqueue(frame) {
		logger.Warnf("[dispatch] send queue full, drop event=%s user=%s conn=%s", event, user, c.ConnID)
		return false
	}
	return true
}

// BroadcastPresence pushes the current online-user snapshot to every
// registered connection. Called once per logical registry mutation.
func (d *Dispatcher) BroadcastPresence() {
	conns := d.reg.clients()
	if len(conns) == 0 {
		return
	}
	frame, err := EncodeOnlineUsers(d.reg.Snapshot())
	if err != nil {
		logger.Errorf("[dispatch] encode onlineUsers err=%v", err)
		return
	}
	d.fan.broadcast(conns, frame)
}

// Close drains the fanout workers.
func (d *Dispatcher) Close() { d.fan.close() }

// ===== fanout worker pool =====

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

type fanout struct {
	jobs   chan fanoutJob
	mu     sync.RWMutex
	closed bool
}

func newFanout(workers, queue int) *fanout {
	f := &fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					if !c.enqueue(job.payload) {
						// Slow client: skip, the next broadcast supersedes this one
						logger.Debugf("[fanout] drop broadcast conn=%s user=%s", c.ConnID, c.UserID)
					}
				}
			}
		}()
	}
	return f
}

func (f *fanout) broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.jobs <- fanoutJob{conns: conns, payload: payload}:
	default:
		logger.Warnf("[fanout] job queue full, drop broadcast to %d conns", len(conns))
	}
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.jobs)
	}
}
