package socket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"repairtrack/pkg/logger"
)

const (
	sendBufferSize = 256
	pingInterval   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// All origins are allowed, matching the HTTP CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one live subscriber connection. It carries no identity: a
// reconnect creates a fresh Client with no continuity.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	Send chan []byte

	// Closed by the hub when it drops the client. Send stays open so the
	// read side can never hit a closed channel mid-send.
	done chan struct{}
}

// ServeWs upgrades the HTTP request and registers the connection with the
// hub.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		Send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	client.hub.Register <- client

	go client.writePump()
	go client.readPump()
}

// readPump handles inbound frames. The only request a client can make is
// requestData, answered with a fresh read from the store.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("Websocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		if msg.Type == RequestDataType && msg.File != "" {
			c.sendInitialData(msg.File)
		}
	}
}

// sendInitialData replies once with the current document, read from disk at
// this moment rather than any cache. A document that cannot be read answers
// as empty, so a fresh client always gets a usable starting state.
func (c *Client) sendInitialData(file string) {
	data, err := c.hub.store.Read(file)
	if err != nil {
		logger.Sugar.Errorf("Failed to read document %s: %v", file, err)
		data = []byte("[]")
	}

	reply, err := json.Marshal(Message{Type: InitialDataType, File: file, Data: data})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling initial data for %s: %v", file, err)
		return
	}

	select {
	case c.Send <- reply:
	case <-c.done:
	default:
		logger.Sugar.Warnf("Send buffer full delivering initial data for %s", file)
	}
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.done:
			// Hub dropped this client.
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
