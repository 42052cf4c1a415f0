package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WebSocketChannelName is the gateway name of the WebSocket channel.
const WebSocketChannelName = "websocket"

const wsWriteTimeout = 5 * time.Second

// wsInbound is the frame a client sends to post a chat message.
type wsInbound struct {
	Content string `json:"content"`
}

type wsClient struct {
	conn   *websocket.Conn
	userID string
}

// WebSocketChannel pushes transcript entries to connected browsers and accepts
// chat messages from them. It is also the http.Handler for the upgrade endpoint.
type WebSocketChannel struct {
	defaultUser    string
	originPatterns []string

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	handler func(InboundMessage)
}

// NewWebSocketChannel creates a channel. Connections without a user query parameter
// are attributed to defaultUser. originPatterns restricts cross-origin upgrades; empty
// allows only same-origin requests.
func NewWebSocketChannel(defaultUser string, originPatterns []string) *WebSocketChannel {
	return &WebSocketChannel{
		defaultUser:    defaultUser,
		originPatterns: originPatterns,
		clients:        make(map[*wsClient]struct{}),
	}
}

// Start records the handler for inbound messages.
func (w *WebSocketChannel) Start(_ context.Context, handler func(InboundMessage)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = handler
	return nil
}

// Stop closes every open connection.
func (w *WebSocketChannel) Stop() error {
	w.mu.Lock()
	clients := w.clients
	w.clients = make(map[*wsClient]struct{})
	w.mu.Unlock()

	var errs []error
	for c := range clients {
		if err := c.conn.Close(websocket.StatusGoingAway, "server shutting down"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clients returns the number of open connections.
func (w *WebSocketChannel) Clients() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.clients)
}

// SendMessage writes msg to every connection of userID, or to all connections when
// userID is empty. A failed write drops that connection.
func (w *WebSocketChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	w.mu.RLock()
	targets := make([]*wsClient, 0, len(w.clients))
	for c := range w.clients {
		if userID == "" || c.userID == userID {
			targets = append(targets, c)
		}
	}
	w.mu.RUnlock()

	var errs []error
	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := wsjson.Write(wctx, c.conn, msg.Message)
		cancel()
		if err != nil {
			slog.Warn("websocket write failed", "user_id", c.userID, "error", err)
			w.remove(c)
			c.conn.Close(websocket.StatusInternalError, "write failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ServeHTTP upgrades the request and reads chat messages until the client leaves.
func (w *WebSocketChannel) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{
		OriginPatterns: w.originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = w.defaultUser
	}
	c := &wsClient{conn: conn, userID: userID}

	w.mu.Lock()
	w.clients[c] = struct{}{}
	w.mu.Unlock()
	slog.Info("websocket client connected", "user_id", userID)

	defer func() {
		w.remove(c)
		conn.Close(websocket.StatusNormalClosure, "")
		slog.Info("websocket client disconnected", "user_id", userID)
	}()

	ctx := r.Context()
	for {
		var in wsInbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				slog.Debug("websocket read ended", "user_id", userID, "error", err)
			}
			return
		}

		w.mu.RLock()
		handler := w.handler
		w.mu.RUnlock()
		if handler == nil {
			slog.Warn("websocket message dropped, channel not started", "user_id", userID)
			continue
		}
		handler(InboundMessage{Channel: WebSocketChannelName, UserID: userID, Text: in.Content})
	}
}

func (w *WebSocketChannel) remove(c *wsClient) {
	w.mu.Lock()
	delete(w.clients, c)
	w.mu.Unlock()
}
