// Package signal is the websocket surface of the room engine: JSON
// envelopes in, channel snapshots out.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/app"
	"github.com/avele/studyroom/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch       *app.Orchestrator
	limiter    *ChatRateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(orch *app.Orchestrator, readLimit int64, pingPeriod time.Duration) *Controller {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &Controller{
		Orch:       orch,
		limiter:    NewChatRateLimiter(10, time.Second*10),
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// WsConn implements app.SignalConn over a gorilla websocket with a
// buffered send queue; a full queue drops the frame with
// ErrBackpressure instead of blocking the feed.
type WsConn struct {
	conn *websocket.Conn
	send chan app.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f app.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and binds it to the registry. The
// identity provider's values arrive as query params and are trusted
// as given.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	sid := app.SessionID(c.GetString("client_token"))
	identity := domain.Identity(c.Query("identity"))
	name := c.Query("name")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity required"})
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("identity", string(identity)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan app.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, domain.Participant{Identity: identity, Name: name}, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
