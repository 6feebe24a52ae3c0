// Package client implements the reconciliation agent: a local mirror of
// one server document, kept current by pushed updates and pushed whole on
// every local edit.
//
// The mirror is optimistic. A local mutation is applied before the write
// reaches the server, and an incoming update replaces the mirror outright.
// When two clients edit at once the last completed server write wins; the
// agent performs no merging.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"repairtrack/internal/repair"
	"repairtrack/pkg/logger"
	"repairtrack/socket"
)

const DefaultRetryDelay = 3 * time.Second

// Agent mirrors one document from a repairtrack server.
type Agent struct {
	baseURL    string
	wsURL      string
	file       string
	retryDelay time.Duration
	httpClient *http.Client

	onChange func([]repair.Ticket)
	notify   func(level, message string)

	mu      sync.Mutex
	writeMu sync.Mutex
	tickets []repair.Ticket
	synced  chan struct{}
}

// Option configures an Agent.
type Option func(*Agent)

// WithOnChange registers the callback fired after every mirror change,
// local or pushed. Dependent views re-derive from the snapshot it receives.
func WithOnChange(fn func([]repair.Ticket)) Option {
	return func(a *Agent) { a.onChange = fn }
}

// WithNotify registers the callback for user-visible transient events
// (connected, disconnected, remote update, save failure).
func WithNotify(fn func(level, message string)) Option {
	return func(a *Agent) { a.notify = fn }
}

// WithRetryDelay overrides the fixed reconnect/request delay.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Agent) { a.retryDelay = d }
}

// New creates an agent for the document file on the server at baseURL
// (e.g. "http://localhost:3000").
func New(baseURL, file string, opts ...Option) *Agent {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	a := &Agent{
		baseURL:    baseURL,
		wsURL:      wsURL,
		file:       file,
		retryDelay: DefaultRetryDelay,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		onChange:   func([]repair.Ticket) {},
		notify:     func(string, string) {},
		synced:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run connects and keeps the agent connected until ctx is cancelled. Every
// lost connection is replaced after the same fixed delay, forever.
func (a *Agent) Run(ctx context.Context) {
	for {
		if err := a.connect(ctx); err != nil {
			logger.Sugar.Warnf("Connection attempt failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.retryDelay):
		}
	}
}

// Synced returns a channel closed once the first initialData for the
// agent's file has been applied.
func (a *Agent) Synced() <-chan struct{} {
	return a.synced
}

func (a *Agent) connect(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return err
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The dial context only covers the handshake. Close the connection
	// when ctx is cancelled so the read loop below unblocks and Run can
	// return without waiting for the server to drop us.
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	go func() {
		<-watchCtx.Done()
		conn.Close()
	}()

	a.notify("success", "Connected to server")

	// Ask for the current document, and keep asking on the fixed delay
	// until the first reply lands.
	requestCtx, stopRequesting := context.WithCancel(ctx)
	defer stopRequesting()
	go a.requestInitialData(requestCtx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				a.notify("error", "Connection lost. Attempting to reconnect...")
			}
			return nil
		}

		var msg socket.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error parsing server message: %v", err)
			continue
		}
		if msg.File != a.file {
			continue
		}

		switch msg.Type {
		case socket.InitialDataType:
			stopRequesting()
			a.replaceMirror(msg.Data)
			a.markSynced()
		case socket.DataUpdateType:
			a.replaceMirror(msg.Data)
			a.notify("info", "Data updated from another device")
		}
	}
}

func (a *Agent) requestInitialData(ctx context.Context, conn *websocket.Conn) {
	msg := socket.Message{Type: socket.RequestDataType, File: a.file}
	for {
		a.writeMu.Lock()
		err := conn.WriteJSON(msg)
		a.writeMu.Unlock()
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.retryDelay):
		}
	}
}

func (a *Agent) markSynced() {
	a.mu.Lock()
	defer a.mu.Unlock()
	select {
	case <-a.synced:
	default:
		close(a.synced)
	}
}

// replaceMirror swaps in the delivered content wholesale. Last message
// wins; a payload that is not a ticket array resets the mirror to empty.
func (a *Agent) replaceMirror(data json.RawMessage) {
	var tickets []repair.Ticket
	if err := json.Unmarshal(data, &tickets); err != nil {
		logger.Sugar.Warnf("Document %s is not a ticket list: %v", a.file, err)
		tickets = nil
	}

	a.mu.Lock()
	a.tickets = tickets
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.onChange(snapshot)
}

// Tickets returns a copy of the current mirror.
func (a *Agent) Tickets() []repair.Ticket {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Agent) snapshotLocked() []repair.Ticket {
	out := make([]repair.Ticket, len(a.tickets))
	copy(out, a.tickets)
	return out
}

// CreateTicket adds a ticket to the mirror and pushes the document.
func (a *Agent) CreateTicket(t repair.Ticket) error {
	a.mu.Lock()
	a.tickets = append(a.tickets, t)
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	a.onChange(snapshot)
	return a.save(snapshot)
}

// UpdateTicket replaces the ticket with the same id and pushes the
// document.
func (a *Agent) UpdateTicket(t repair.Ticket) error {
	a.mu.Lock()
	found := false
	for i := range a.tickets {
		if a.tickets[i].ID == t.ID {
			a.tickets[i] = t
			found = true
			break
		}
	}
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	if !found {
		return fmt.Errorf("ticket %s not found", t.ID)
	}
	a.onChange(snapshot)
	return a.save(snapshot)
}

// DeleteTicket removes a ticket by id and pushes the document.
func (a *Agent) DeleteTicket(id string) error {
	a.mu.Lock()
	kept := a.tickets[:0]
	found := false
	for _, t := range a.tickets {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	a.tickets = kept
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	if !found {
		return fmt.Errorf("ticket %s not found", id)
	}
	a.onChange(snapshot)
	return a.save(snapshot)
}

// save pushes the whole mirror through the request/response write path.
// The mirror already reflects the change, so the agent does not wait for
// its own broadcast to come back.
func (a *Agent) save(tickets []repair.Ticket) error {
	if tickets == nil {
		tickets = []repair.Ticket{}
	}
	body, err := json.Marshal(tickets)
	if err != nil {
		return err
	}

	resp, err := a.httpClient.Post(a.baseURL+"/data/"+a.file, "application/json", bytes.NewReader(body))
	if err != nil {
		a.notify("error", "Error saving data to server")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.notify("error", "Error saving data to server")
		return fmt.Errorf("save %s: unexpected status %d", a.file, resp.StatusCode)
	}
	return nil
}
