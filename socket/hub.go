package socket

import (
	"context"
	"encoding/json"

	"repairtrack/internal/store"
	"repairtrack/pkg/logger"
)

const (
	RequestDataType = "requestData" // Client asks for the current document
	InitialDataType = "initialData" // Reply carrying the document as it exists now
	DataUpdateType  = "dataUpdate"  // Push after any successful write by any client
)

// Message is the JSON frame exchanged over a connection.
type Message struct {
	Type string          `json:"type"`
	File string          `json:"file"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hub owns the set of live connections and fans document updates out to
// them. The registry lives for the life of the hub, not in a global. All
// registry mutation and fan-out happens on the Run goroutine, which is the
// ordering point: updates to the same document reach a connection in the
// order their writes completed.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan Message
	clients    map[*Client]bool
	store      *store.Store
}

func NewHub(st *store.Store) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan Message),
		clients:    make(map[*Client]bool),
		store:      st,
	}
}

// Publish queues a dataUpdate for file to every live connection. Delivery
// is best effort per recipient: a connection that cannot accept the message
// is dropped without affecting the others or the caller.
func (h *Hub) Publish(file string, data json.RawMessage) {
	h.broadcast <- Message{Type: DataUpdateType, File: file, Data: data}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			// Keep servicing the channels so nothing that raced the
			// cancellation parks forever: late upgrades are rejected,
			// late publishes and unregisters are discarded.
			go func() {
				for {
					select {
					case client := <-h.Register:
						client.conn.Close()
					case <-h.Unregister:
					case <-h.broadcast:
					}
				}
			}()
			return

		case client := <-h.Register:
			h.clients[client] = true
			logger.Sugar.Infof("Client connected (%d total)", len(h.clients))

		case client := <-h.Unregister:
			// Safe to receive twice for the same client.
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				logger.Sugar.Infof("Client disconnected (%d total)", len(h.clients))
			}

		case msg := <-h.broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.Send <- payload:
				default:
					// Send buffer full: the client is lagging. Evict it
					// so the remaining recipients still get their copy.
					logger.Sugar.Warnf("Client send buffer full, dropping connection")
					h.drop(client)
				}
			}
		}
	}
}

// drop removes a client and closes its connection. Run goroutine only.
// Send is left open; done tells the pumps the client is finished.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.done)
	client.conn.Close()
}
