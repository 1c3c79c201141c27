package events

import (
	"time"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// Realtime event names pushed to websocket clients.
const (
	ReceiveMessage        = "ReceiveMessage"
	ChatClosed            = "ChatClosed"
	ChatReopened          = "ChatReopened"
	TechnicianClosePrompt = "TechnicianClosePrompt"
	NewTicket             = "NewTicket"
	CloseRequested        = "CloseRequested"
	Joined                = "Joined"
	Error                 = "Error"
)

// ReceiveMessagePayload carries one timeline entry appended to a room.
type ReceiveMessagePayload struct {
	TicketID     string           `json:"ticketId"`
	ID           string           `json:"id"`
	Sender       string           `json:"sender"`
	Content      string           `json:"content"`
	Role         domain.Role      `json:"role"`
	Kind         domain.EntryKind `json:"kind"`
	OriginalName string           `json:"originalName,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// ReceiveMessageFrom converts a timeline entry into its broadcast payload.
func ReceiveMessageFrom(ticketID string, entry domain.TimelineEntry) ReceiveMessagePayload {
	return ReceiveMessagePayload{
		TicketID:     ticketID,
		ID:           entry.ID,
		Sender:       entry.Sender,
		Content:      entry.Content,
		Role:         entry.Role,
		Kind:         entry.Kind,
		OriginalName: entry.OriginalName,
		Timestamp:    entry.Timestamp,
	}
}

// ChatClosedPayload is sent to a room once a ticket closes.
type ChatClosedPayload struct {
	TicketID   string              `json:"ticketId"`
	Status     domain.TicketStatus `json:"status"`
	Duration   string              `json:"duration"`
	Technician string              `json:"technician"`
	Customer   string              `json:"customer"`
}

// ChatReopenedPayload carries the full conversation so clients can resync.
type ChatReopenedPayload struct {
	TicketID   string                 `json:"ticketId"`
	Technician string                 `json:"technician"`
	Entries    []domain.TimelineEntry `json:"entries"`
}

// TicketRef names the ticket an event refers to.
type TicketRef struct {
	TicketID string `json:"ticketId"`
}

// NewTicketPayload announces a freshly assigned ticket to every session.
type NewTicketPayload struct {
	TicketID       string    `json:"ticketId"`
	Title          string    `json:"title"`
	Customer       string    `json:"customer"`
	TechnicianID   string    `json:"technicianId"`
	TechnicianName string    `json:"technicianName"`
	Specialty      string    `json:"specialty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ErrorPayload is returned to the caller that triggered a failed operation.
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
