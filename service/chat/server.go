package chat

import (
	"encoding/json"
	"time"

	"DMChat/logger"
	"DMChat/service/natsx"
	"DMChat/tools/decode"
)

// ServerConf carries the gateway's static configuration.
type ServerConf struct {
	GatewayID     string
	JWTSecret     []byte
	AllowedOrigin string // empty = allow any origin
	SendQueueSize int
	ReapInterval  time.Duration
	IdleThreshold time.Duration
}

// PresenceMirror is an advisory copy of the presence map kept outside the
// process (redis). Mirror failures never affect the in-memory registry,
// which stays the single source of truth.
type PresenceMirror interface {
	Online(user, connID string)
	Offline(user string)
}

// Server owns the presence registry, the dispatcher and the idle reaper.
type Server struct {
	conf      ServerConf
	reg       *Registry
	disp      *Dispatcher
	reaper    *Reaper
	mirror    PresenceMirror
	startedAt time.Time
}

func NewServer(conf ServerConf) *Server {
	if conf.SendQueueSize <= 0 {
		conf.SendQueueSize = 256
	}
	reg := NewRegistry()
	disp := NewDispatcher(reg)
	s := &Server{
		conf:      conf,
		reg:       reg,
		disp:      disp,
		reaper:    NewReaper(reg, disp, conf.ReapInterval, conf.IdleThreshold),
		startedAt: time.Now(),
	}
	return s
}

func (s *Server) Reg() *Registry        { return s.reg }
func (s *Server) Disp() *Dispatcher     { return s.disp }
func (s *Server) Reaper() *Reaper       { return s.reaper }
func (s *Server) GatewayID() string     { return s.conf.GatewayID }
func (s *Server) SetMirror(m PresenceMirror) { s.mirror = m }

func (s *Server) Start() { s.reaper.Start() }

func (s *Server) Shutdown() {
	s.reaper.Stop()
	for _, c := range s.reg.clients() {
		c.ForceClose("server shutdown")
	}
	s.disp.Close()
}

// Health is the read-only introspection payload for operators.
type Health struct {
	Online    int   `json:"online"`
	UptimeSec int64 `json:"uptime_sec"`
}

func (s *Server) Health() Health {
	return Health{
		Online:    s.reg.Size(),
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
	}
}

// DeliverEvent is the bus envelope published by the REST write path after a
// successful persist. Data is forwarded to the target verbatim.
type DeliverEvent struct {
	To    string          `json:"to"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// BindBus subscribes the gateway to the persist-then-deliver subjects.
func (s *Server) BindBus(m *natsx.Manager) error {
	handler := func(subject string, data []byte) error {
		ev, err := decode.DecodeJSON[DeliverEvent](data)
		if err != nil {
			return err
		}
		if ev.To == "" || ev.Event == "" {
			logger.Warnf("[bus] malformed event subject=%s", subject)
			return nil
		}
		if !s.disp.Deliver(ev.To, ev.Event, ev.Data) {
			// Recipient offline: expected, the write is already durable.
			logger.Debugf("[bus] recipient offline user=%s event=%s", ev.To, ev.Event)
		}
		return nil
	}
	if err := m.Subscribe(natsx.SubjectMessageSaved, "gateway", handler); err != nil {
		return err
	}
	return m.Subscribe(natsx.SubjectNotificationSaved, "gateway", handler)
}
