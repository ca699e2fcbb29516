package chat

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"DMChat/logger"
	"DMChat/tools/ids"
	"DMChat/tools/security"
)

const (
	readLimit = 1 << 20 // 1MB
	pongWait  = 75 * time.Second
)

// Per-connection state machine: CONNECTING -> AUTHENTICATED -> ACTIVE ->
// CLOSED. Authentication happens at the handshake; a connection without a
// valid identity is dropped and never registered.

// HandleWS upgrades the request, authenticates it and runs the read loop
// until the connection dies, is replaced, is logged out or is reaped.
func (s *Server) HandleWS(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if s.conf.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.conf.AllowedOrigin
		},
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[WS] upgrade error: %v", err)
		return
	}

	// CONNECTING -> AUTHENTICATED
	userID, aerr := s.authenticate(c)
	if aerr != nil {
		logger.Infof("[WS] auth failed remote=%s err=%v", c.Request.RemoteAddr, aerr)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "auth failed"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	// AUTHENTICATED -> ACTIVE
	connID := ids.GenerateString()
	client := NewClient(connID, userID, ws, s.conf.SendQueueSize)

	replaced := s.reg.Register(userID, connID, c.Request.UserAgent(), client)
	if replaced != nil {
		// Last-registered-wins: kick the older device.
		logger.Infof("[WS] replace conn user=%s old=%s new=%s", userID, replaced.ConnID, connID)
		replaced.ForceClose("replaced by newer connection")
	}
	if s.mirror != nil {
		s.mirror.Online(userID, connID)
	}
	s.disp.BroadcastPresence()

	go client.writeLoop()

	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		s.reg.Touch(userID, connID)
		if s.mirror != nil {
			s.mirror.Online(userID, connID) // refresh the TTL
		}
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	logger.Infof("[WS] connected user=%s conn=%s gw=%s", userID, connID, s.conf.GatewayID)
	s.readLoop(client)

	// ACTIVE -> CLOSED: unregister with our own conn id; broadcast only if
	// we were still the registered entry (a stale handler after replacement
	// must not remove or re-announce the newer connection).
	if s.reg.Unregister(userID, connID) {
		if s.mirror != nil {
			s.mirror.Offline(userID)
		}
		s.disp.BroadcastPresence()
	} else {
		logger.Debugf("[WS] stale unregister ignored user=%s conn=%s", userID, connID)
	}
	client.ForceClose("closed")
	logger.Infof("[WS] closed user=%s conn=%s", userID, connID)
}

// authenticate extracts and validates the caller's identity from the
// handshake: `token` query parameter first, then Authorization bearer.
func (s *Server) authenticate(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if token == "" {
		return "", errMissingToken
	}
	claims, err := security.Verify(security.DefaultOptions(s.conf.JWTSecret), token)
	if err != nil {
		return "", err
	}
	user := claims.UserID()
	if user == "" {
		return "", errMissingSubject
	}
	return user, nil
}

var (
	errMissingToken   = &authError{"missing token"}
	errMissingSubject = &authError{"token has no subject"}
)

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

func (s *Server) readLoop(client *Client) {
	ws := client.WS
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseClientFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] bad frame conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		// Any well-formed inbound frame counts as activity.
		s.reg.Touch(client.UserID, client.ConnID)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Type {
		case FramePing:
			// activity refresh above is the whole effect
		case FrameLogout:
			logger.Infof("[WS] logout requested user=%s conn=%s", client.UserID, client.ConnID)
			return
		default:
			logger.Debugf("[WS] unknown frame type=%q conn=%s", frame.Type, client.ConnID)
		}
	}
}
