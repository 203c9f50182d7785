package coordinator

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// WSHandler upgrades GET /ws?email= to the game protocol. The email is
// verified against the identity service before the upgrade; an unknown email
// gets a 401 and no socket.
func (c *Coordinator) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			http.Error(w, "missing email", http.StatusBadRequest)
			return
		}

		ok, err := c.identity.Verify(r.Context(), email)
		if err != nil {
			c.log.Warn("identity_verify_failed", zap.String("email", email), zap.Error(err))
			http.Error(w, "identity service unavailable", http.StatusBadGateway)
			return
		}
		if !ok {
			http.Error(w, "unknown identity", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: c.allowedOrigins,
		})
		if err != nil {
			return
		}

		wc := &wsConn{conn: conn}
		c.reg.Register(email, wc)
		c.log.Info("ws_connect", zap.String("identity", email))

		defer func() {
			c.reg.Unregister(email, wc)
			c.queue.Remove(email)
			_ = wc.Close("")
			c.log.Info("ws_disconnect", zap.String("identity", email))
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					c.log.Debug("ws_read", zap.String("identity", email), zap.Error(err))
				}
				return
			}
			c.Dispatch(r.Context(), email, data)
		}
	}
}

// wsConn adapts a websocket connection to the registry's Conn. The write
// mutex serializes frames from the session store, the broker, and the
// dispatcher.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) Send(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}
