package events

import (
	"time"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// EventType enumerates internal domain events fed to the dispatcher.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// Actor is the explicit caller behind an event.
type Actor struct {
	Role domain.Role `json:"role"`
	ID   string      `json:"id,omitempty"`
	Name string      `json:"name,omitempty"`
}

// ActorFrom converts a sender into an event actor.
func ActorFrom(sender domain.Sender) Actor {
	return Actor{Role: sender.Role, ID: sender.ID, Name: sender.Name}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title        string `json:"title"`
	Specialty    string `json:"specialty"`
	TechnicianID string `json:"technician_id"`
	Advised      bool   `json:"advised"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID   string `json:"technician_id"`
	TechnicianName string `json:"technician_name"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	EntryID     string           `json:"entry_id"`
	Kind        domain.EntryKind `json:"kind"`
	BodyPreview string           `json:"body_preview"`
}
