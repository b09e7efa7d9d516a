package chat

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"PSocial/logger"
	"PSocial/tools/ids"
	"PSocial/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WsConf struct {
	SendQueueSize   int
	MaxMessageBytes int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingInterval    time.Duration
	AllowedOrigins  []string // empty or "*" allows any origin
}

func (c *WsConf) norm() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 << 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
}

// WsServer upgrades /chat requests and runs one reader and one writer per
// connection.
type WsServer struct {
	gw       *Gateway
	conns    *ConnManager
	disp     *Dispatcher
	conf     WsConf
	upgrader websocket.Upgrader
}

func NewWsServer(conf WsConf, gw *Gateway, conns *ConnManager) *WsServer {
	conf.norm()
	s := &WsServer{
		gw:    gw,
		conns: conns,
		disp:  NewDispatcher(),
		conf:  conf,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.disp.Register(NewSendMessageHandler(gw))
	return s
}

func (s *WsServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.conf.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.conf.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	logger.Warn("[WS] origin rejected", zap.String("origin", origin))
	return false
}

// HandleWS serves GET /chat?userId=<id>.
func (s *WsServer) HandleWS(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if isAnonymous(userID) {
		userID = ""
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already answered with an HTTP error
		logger.Infof("[WS] upgrade websocket error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), userID, ws, s.conf.SendQueueSize)
	s.conns.Add(client)
	s.gw.HandleConnect(userID, client.ConnID)
	logger.Info("[WS] connected", zap.String("conn", client.ConnID), zap.String("user", userID))

	writerDone := make(chan struct{})
	safe.Go("ws-writer", func() {
		defer close(writerDone)
		s.writeLoop(client)
	})

	s.readLoop(client)

	s.gw.HandleDisconnect(client.ConnID)
	s.conns.Remove(client.ConnID)
	<-writerDone
	logger.Info("[WS] closed", zap.String("conn", client.ConnID), zap.String("user", userID))
}

func (s *WsServer) readLoop(client *Client) {
	ws := client.WS
	ws.SetReadLimit(s.conf.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				logger.Debug("[WS] peer closed", zap.String("conn", client.ConnID))
			case errors.As(err, &ne) && ne.Timeout():
				logger.Infof("[WS] read timeout conn=%s err=%v", client.ConnID, err)
			default:
				logger.Infof("[WS] read err conn=%s err=%v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.conf.PongWait))

		f, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warn("[WS] bad frame", zap.String("conn", client.ConnID),
				zap.ByteString("sample", sample), zap.Int("len", len(data)), zap.Error(perr))
			continue
		}
		if err := s.disp.Dispatch(client, f); err != nil {
			logger.Infof("[WS] dispatch conn=%s event=%s err=%v", client.ConnID, f.Event, err)
		}
	}
}

// writeLoop owns all writes to the socket. It flushes what is queued when the
// client is closed, then sends a close frame.
func (s *WsServer) writeLoop(client *Client) {
	ws := client.WS
	ticker := time.NewTicker(s.conf.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.SetWriteDeadline(time.Now().Add(s.conf.WriteWait))
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = ws.Close()
	}()

	write := func(payload []byte) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(s.conf.WriteWait))
		if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Infof("[WS] write err conn=%s err=%v", client.ConnID, err)
			return false
		}
		return true
	}

	for {
		select {
		case <-client.Done():
			for {
				select {
				case payload := <-client.Send:
					if !write(payload) {
						return
					}
				default:
					return
				}
			}
		case payload := <-client.Send:
			if !write(payload) {
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.conf.WriteWait)); err != nil {
				logger.Infof("[WS] ping err conn=%s err=%v", client.ConnID, err)
				return
			}
		}
	}
}

// Close closes every live connection.
func (s *WsServer) Close() {
	s.conns.CloseAll()
}
