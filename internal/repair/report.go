package repair

import "strings"

// Filter narrows a ticket list by status, brand, and a free-text query.
// Zero values match everything.
func Filter(tickets []Ticket, status Status, brand, query string) []Ticket {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if status != "" && t.Status != status {
			continue
		}
		if brand != "" && !strings.EqualFold(t.Brand, brand) {
			continue
		}
		if query != "" && !matchesQuery(t, query) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesQuery(t Ticket, query string) bool {
	for _, field := range []string{t.TicketNumber, t.Brand, t.Model, t.Serial, t.Problem, t.Diagnosis} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Stats is the summary view derived from a ticket list.
type Stats struct {
	Total    int            `json:"total"`
	Open     int            `json:"open"`
	ByStatus map[Status]int `json:"byStatus"`
	ByBrand  map[string]int `json:"byBrand"`
}

// ComputeStats counts tickets per status and brand. Completed tickets are
// not open; every other status is.
func ComputeStats(tickets []Ticket) Stats {
	stats := Stats{
		Total:    len(tickets),
		ByStatus: make(map[Status]int),
		ByBrand:  make(map[string]int),
	}
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
		if t.Brand != "" {
			stats.ByBrand[t.Brand]++
		}
		if t.Status != StatusCompleted {
			stats.Open++
		}
	}
	return stats
}
