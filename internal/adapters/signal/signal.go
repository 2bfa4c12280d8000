package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"parlor/internal/app"
	"parlor/internal/config"
	"parlor/internal/domain"
	"parlor/internal/store"
)

var ErrBackpressure = errors.New("backpressure")

const writeWait = 5 * time.Second

// Controller owns the WebSocket signaling endpoint: one read pump and one
// write pump per connection, events dispatched through an explicit table.
type Controller struct {
	Coord       *app.Coordinator
	Relay       *app.Relay
	SessionRepo store.SessionRepo
	UserRepo    store.UserRepo
	Cfg         *config.Config

	handlers map[string]handlerFunc
}

type handlerFunc func(cl *client, data []byte)

func NewController(coord *app.Coordinator, relay *app.Relay, sessionRepo store.SessionRepo, userRepo store.UserRepo, cfg *config.Config) *Controller {
	ctl := &Controller{
		Coord:       coord,
		Relay:       relay,
		SessionRepo: sessionRepo,
		UserRepo:    userRepo,
		Cfg:         cfg,
	}
	ctl.handlers = map[string]handlerFunc{
		"identify":      ctl.handleIdentify,
		"create-room":   ctl.handleCreateRoom,
		"join-room":     ctl.handleJoinRoom,
		"resync":        ctl.handleResync,
		"ice-candidate": ctl.handleICECandidate,
		"voice-offer":   ctl.handleVoiceOffer,
		"voice-answer":  ctl.handleVoiceAnswer,
		"initialize":    ctl.handleInitialize,
		"ping":          ctl.handlePing,
	}
	return ctl
}

// client is the explicit per-connection context threaded through every
// handler call; no state hangs off the socket itself.
type client struct {
	id         domain.ConnID
	conn       *wsConn
	cookieSID  domain.SessionID
	sessionID  domain.SessionID // set once identify succeeds
	identified atomic.Bool      // read by the identify deadline timer
}

// wsConn wraps the gorilla connection with a buffered outbound channel.
// TrySend never blocks; a full buffer is a backpressure failure the caller
// may drop on.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

var _ app.Conn = (*wsConn)(nil)

func (c *wsConn) TrySend(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- payload:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting frames and closes the send channel. The write pump
// drains what is already queued (the superseded notice, a last error) and
// then closes the underlying socket.
func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the HTTP request and runs the connection until the
// transport drops. The client-token cookie seeds the session id; an explicit
// identify event may override it.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cl := &client{
		id:        domain.ConnID(uuid.NewString()),
		cookieSID: domain.SessionID(c.GetString("client_token")),
		conn: &wsConn{
			conn: ws,
			send: make(chan []byte, ctl.Cfg.SendBuffer),
		},
	}
	log.Info().Str("module", "signal").Str("conn", string(cl.id)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cl.conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, cl)
	}()
}
