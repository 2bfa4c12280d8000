package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"parlor/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	// The write pump owns the underlying socket's lifetime.
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cl *client) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cl.id)).Msg("readPump closing")
		if cl.identified.Load() {
			ctl.Coord.Disconnect(cl.id)
		}
		cl.conn.Close()
	}()

	cl.conn.conn.SetReadLimit(ctl.Cfg.ReadLimit)

	// A connection that never identifies is dead weight; bound the wait.
	identifyDeadline := time.AfterFunc(ctl.Cfg.IdentifyTimeout, func() {
		if !cl.identified.Load() {
			ctl.sendError(cl, domain.ErrTimeout, "identify deadline exceeded")
			cl.conn.Close()
		}
	})
	defer identifyDeadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := cl.conn.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.dispatch(cl, data)
		}
	}
}

// dispatch routes one inbound frame through the handler table. A panic in a
// handler is confined to this connection; it never takes the process down.
func (ctl *Controller) dispatch(cl *client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("conn", string(cl.id)).Any("panic", r).Msg("handler panic isolated")
			ctl.sendError(cl, nil, "internal error")
		}
	}()

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(cl, nil, "bad_payload")
		return
	}
	h, ok := ctl.handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
		return
	}
	h(cl, data)
}

func (ctl *Controller) sendJSON(cl *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = cl.conn.TrySend(b)
}

// sendError maps the taxonomy to a wire code. Anything unclassified is an
// internal fault, reported but not detailed.
func (ctl *Controller) sendError(cl *client, err error, msg string) {
	code := "Internal"
	switch {
	case errors.Is(err, domain.ErrUserNameEmpty), errors.Is(err, domain.ErrUserNameTooLong):
		code = "BadPayload"
	case errors.Is(err, domain.ErrNotFound):
		code = "NotFound"
	case errors.Is(err, domain.ErrConflict):
		code = "Conflict"
	case errors.Is(err, domain.ErrUnavailable):
		code = "Unavailable"
	case errors.Is(err, domain.ErrTimeout):
		code = "Timeout"
	}
	ctl.sendJSON(cl, struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{"error", code, msg})
}

func (ctl *Controller) handlePing(cl *client, _ []byte) {
	ctl.sendJSON(cl, struct {
		Type string `json:"type"`
	}{"pong"})
}
