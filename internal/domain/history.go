package domain

import "time"

// HistoryChange classifies an audit entry.
type HistoryChange string

const (
	HistoryCreated  HistoryChange = "created"
	HistoryStatus   HistoryChange = "status"
	HistoryAssigned HistoryChange = "assigned"
)

// TicketHistory is one audit record of a ticket lifecycle change.
type TicketHistory struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticketId"`
	Change    HistoryChange `json:"change"`
	ActorRole Role          `json:"actorRole"`
	ActorID   *string       `json:"actorId,omitempty"`
	ActorName string        `json:"actorName,omitempty"`
	OldValue  *string       `json:"oldValue,omitempty"`
	NewValue  *string       `json:"newValue,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}
