package broadcast

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"videovault/internal/access"
	"videovault/internal/middleware"
	"videovault/internal/pkg/logger"
	"videovault/internal/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
)

// ClientMessage is what a client may send: join or leave an owner group.
type ClientMessage struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

// ControlMessage acknowledges client requests.
type ControlMessage struct {
	Type    string `json:"type"`
	UserID  int64  `json:"userId,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type WSHandler struct {
	hub      *Hub
	guard    *access.Guard
	buffer   int
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWSHandler builds the progress endpoint. An empty origin list or "*"
// accepts any origin; requests without an Origin header are always accepted.
func NewWSHandler(hub *Hub, guard *access.Guard, buffer int, allowedOrigins []string, log *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		guard:  guard,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		log: logger.Component(log, "progress_ws"),
	}
}

type client struct {
	conn *websocket.Conn
	sub  *Subscriber
	ctrl chan ControlMessage
	done chan struct{}
}

// HandleWebSocket serves GET /ws/progress. Authentication happens in the
// middleware chain, which accepts the token from the query string.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ident, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn: conn,
		sub:  NewSubscriber(h.buffer),
		ctrl: make(chan ControlMessage, 8),
		done: make(chan struct{}),
	}
	h.log.Debug("progress client connected",
		zap.String("subscriber_id", cl.sub.ID()),
		zap.Int64("user_id", ident.ID),
	)

	go h.writePump(cl)
	h.readPump(cl, ident)
}

func (h *WSHandler) readPump(cl *client, ident access.Identity) {
	defer func() {
		h.hub.Unsubscribe(cl.sub)
		close(cl.done)
		cl.conn.Close()
		h.log.Debug("progress client disconnected", zap.String("subscriber_id", cl.sub.ID()))
	}()

	cl.conn.SetReadLimit(maxMsgSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("progress client read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(cl, ControlMessage{Type: "error", Code: "INVALID_JSON", Message: "Failed to parse message"})
			continue
		}

		switch msg.Type {
		case "join":
			h.join(cl, ident, msg.UserID)
		case "leave":
			h.hub.Leave(cl.sub, msg.UserID)
			h.reply(cl, ControlMessage{Type: "left", UserID: msg.UserID})
		default:
			h.reply(cl, ControlMessage{Type: "error", Code: "UNKNOWN_TYPE", Message: "Unknown message type"})
		}
	}
}

func (h *WSHandler) join(cl *client, ident access.Identity, ownerID int64) {
	d := h.guard.Authorize(ident, &access.Resource{OwnerID: ownerID}, access.ActionSubscribe)
	if !d.Allowed {
		h.reply(cl, ControlMessage{Type: "error", UserID: ownerID, Code: "FORBIDDEN", Message: "Access denied: " + d.Reason})
		return
	}
	if err := h.hub.Subscribe(cl.sub, ownerID); err != nil {
		h.reply(cl, ControlMessage{Type: "error", UserID: ownerID, Code: "UNAVAILABLE", Message: err.Error()})
		return
	}
	h.reply(cl, ControlMessage{Type: "joined", UserID: ownerID})
}

func (h *WSHandler) reply(cl *client, msg ControlMessage) {
	select {
	case cl.ctrl <- msg:
	default:
	}
}

func (h *WSHandler) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-cl.sub.Events():
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(ev); err != nil {
				return
			}
		case msg := <-cl.ctrl:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}
