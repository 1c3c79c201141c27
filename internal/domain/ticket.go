package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// IsTerminal reports whether the status ends the conversation.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed
}

// IsActive reports whether the ticket counts towards a technician's load.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	Title           string
	Description     string
	Status          TicketStatus
	CreatorID       string
	CreatorName     string
	TechnicianID    *string
	TechnicianName  string
	CreatedAt       time.Time
	StartedAt       *time.Time
	EndedAt         *time.Time
	ServiceDuration *time.Duration
}

// Elapsed returns end - start when both timestamps are present.
func (t *Ticket) Elapsed() (time.Duration, bool) {
	if t.StartedAt == nil || t.EndedAt == nil {
		return 0, false
	}
	return t.EndedAt.Sub(*t.StartedAt), true
}

// ClearClosure drops the end-of-service bookkeeping.
func (t *Ticket) ClearClosure() {
	t.EndedAt = nil
	t.ServiceDuration = nil
}

// FormatDuration renders d as hh:mm:ss. Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
