package chat

import (
	"time"

	"DMChat/logger"
	"DMChat/tools/safe"
)

// Reaper periodically evicts presence entries whose connection has been
// idle past the threshold. It is the only component allowed to evict on a
// time basis rather than a connection-lifecycle event.
type Reaper struct {
	reg       *Registry
	disp      *Dispatcher
	interval  time.Duration
	threshold time.Duration

	// closer performs the eviction side effect for one entry; injectable so
	// the decision logic is testable without a real transport. The default
	// unregisters the entry directly (guarded, so the connection's own
	// teardown later no-ops) and signals the connection to close.
	closer func(*Entry)

	started  bool
	stopOnce chan struct{}
	stopped  chan struct{}
}

func NewReaper(reg *Registry, disp *Dispatcher, interval, threshold time.Duration) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	r := &Reaper{
		reg:       reg,
		disp:      disp,
		interval:  interval,
		threshold: threshold,
		stopOnce:  make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	r.closer = r.evict
	return r
}

func (r *Reaper) Start() {
	r.started = true
	safe.SafeGo(func() {
		defer close(r.stopped)
		t := time.NewTicker(r.interval)
		defer t.Stop()
		for {
			select {
			case <-r.stopOnce:
				return
			case <-t.C:
				r.SweepOnce()
			}
		}
	})
}

func (r *Reaper) Stop() {
	select {
	case <-r.stopOnce:
	default:
		close(r.stopOnce)
	}
	if r.started {
		<-r.stopped
	}
}

// SweepOnce evicts every idle entry and, if anything was evicted, issues a
// single presence broadcast for the whole sweep. Each eviction is isolated:
// one failing close cannot abort the rest.
func (r *Reaper) SweepOnce() int {
	stale := r.reg.EntriesOlderThan(r.threshold)
	n := 0
	for _, e := range stale {
		if err := safe.Run(func() { r.closer(e) }); err != nil {
			logger.Errorf("[reaper] evict user=%s conn=%s: %v", e.UserID, e.ConnID, err)
			continue
		}
		n++
	}
	if n > 0 {
		logger.Infof("[reaper] evicted %d idle connection(s)", n)
		r.disp.BroadcastPresence()
	}
	return n
}

func (r *Reaper) evict(e *Entry) {
	// Guarded removal: if the user reconnected since the scan, the conn id
	// no longer matches and this is a no-op.
	r.reg.Unregister(e.UserID, e.ConnID)
	if e.client != nil {
		e.client.ForceClose("idle timeout")
	}
}
