package repair

import (
	"encoding/csv"
	"fmt"
	"io"
)

var csvHeader = []string{
	"ticketNumber", "brand", "model", "serial", "specs",
	"problem", "diagnosis", "status", "dateCreated", "dateModified",
}

// ExportCSV writes the ticket list as CSV. Ids and note logs are not
// exported; they belong to the document, not the spreadsheet.
func ExportCSV(w io.Writer, tickets []Ticket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tickets {
		row := []string{
			t.TicketNumber, t.Brand, t.Model, t.Serial, t.Specs,
			t.Problem, t.Diagnosis, string(t.Status), t.DateCreated, t.DateModified,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV parses tickets from CSV in the export layout. Imported rows get
// fresh ids; unknown statuses fall back to received.
func ImportCSV(r io.Reader) ([]Ticket, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("unexpected csv header: %v", header)
	}

	var tickets []Ticket
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		status := Status(row[7])
		if !status.Valid() {
			status = StatusReceived
		}
		now := Timestamp()
		t := Ticket{
			ID:           NewID(),
			TicketNumber: row[0],
			Brand:        row[1],
			Model:        row[2],
			Serial:       row[3],
			Specs:        row[4],
			Problem:      row[5],
			Diagnosis:    row[6],
			Status:       status,
			Notes:        []Note{{Timestamp: now, Action: "imported", Text: "Imported from CSV"}},
			DateCreated:  row[8],
			DateModified: row[9],
		}
		if t.DateCreated == "" {
			t.DateCreated = now
		}
		if t.DateModified == "" {
			t.DateModified = now
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}
