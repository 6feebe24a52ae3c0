// Package repair defines the ticket records stored inside a repairs
// document along with the derived views clients build from them. Nothing
// here touches the network or disk.
package repair

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusReceived     Status = "received"
	StatusDiagnosing   Status = "diagnosing"
	StatusWaitingParts Status = "waiting-parts"
	StatusOnHold       Status = "on-hold"
	StatusCompleted    Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusDiagnosing, StatusWaitingParts, StatusOnHold, StatusCompleted:
		return true
	}
	return false
}

// Note is one entry in a ticket's history log, newest first.
type Note struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Text      string `json:"text"`
}

// Ticket is one repair order. IDs are generated on the client that creates
// the ticket and never reused; ticketNumber is the human-facing label and
// carries no uniqueness guarantee.
type Ticket struct {
	ID           string `json:"id"`
	TicketNumber string `json:"ticketNumber"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Specs        string `json:"specs"`
	Problem      string `json:"problem"`
	Diagnosis    string `json:"diagnosis"`
	Status       Status `json:"status"`
	Notes        []Note `json:"notes"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
}

// NewID returns an opaque unique ticket id.
func NewID() string {
	return ulid.Make().String()
}

// Timestamp returns the ISO-8601 instant used everywhere in ticket records.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewTicket creates a ticket in the received state with a created note.
func NewTicket(ticketNumber, brand, model string) Ticket {
	now := Timestamp()
	return Ticket{
		ID:           NewID(),
		TicketNumber: ticketNumber,
		Brand:        brand,
		Model:        model,
		Status:       StatusReceived,
		Notes:        []Note{{Timestamp: now, Action: "created", Text: "Ticket created"}},
		DateCreated:  now,
		DateModified: now,
	}
}

// AddNote prepends an entry to the history log and touches dateModified.
func (t *Ticket) AddNote(action, text string) {
	now := Timestamp()
	t.Notes = append([]Note{{Timestamp: now, Action: action, Text: text}}, t.Notes...)
	t.DateModified = now
}

// SetStatus moves the ticket to a new status, logging the transition.
func (t *Ticket) SetStatus(s Status) error {
	if !s.Valid() {
		return fmt.Errorf("invalid status %q", s)
	}
	if s == t.Status {
		return nil
	}
	old := t.Status
	t.Status = s
	t.AddNote("status-change", fmt.Sprintf("Status changed from %s to %s", old, s))
	return nil
}
