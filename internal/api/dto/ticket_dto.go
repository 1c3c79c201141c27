package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateTicketResponse tells the customer who took the ticket and where to chat.
type CreateTicketResponse struct {
	TicketID           string `json:"ticketId"`
	AssignedTechnician string `json:"assignedTechnician"`
	Specialty          string `json:"specialty"`
	RedirectTarget     string `json:"redirectTarget"`
}

// TicketSummary is one row of a ticket listing.
type TicketSummary struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Status     domain.TicketStatus `json:"status"`
	Customer   string              `json:"customer"`
	Technician string              `json:"technician"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// TicketDetailResponse provides full ticket info with formatted service times.
type TicketDetailResponse struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Status       domain.TicketStatus `json:"status"`
	Customer     string              `json:"customer"`
	TechnicianID *string             `json:"technicianId"`
	Technician   string              `json:"technician"`
	CreatedAt    time.Time           `json:"createdAt"`
	StartedAt    *time.Time          `json:"startedAt"`
	EndedAt      *time.Time          `json:"endedAt"`
	Duration     string              `json:"duration,omitempty"`
}

// StatusResponse reports a ticket's status after a lifecycle operation.
type StatusResponse struct {
	TicketID string              `json:"ticketId"`
	Status   domain.TicketStatus `json:"status"`
	Duration string              `json:"duration,omitempty"`
}

// ReopenRequest names the technician taking the ticket back. Blank means the caller.
type ReopenRequest struct {
	Technician string `json:"technician"`
}

// ReopenResponse carries the resynced conversation.
type ReopenResponse struct {
	TicketID   string                 `json:"ticketId"`
	Status     domain.TicketStatus    `json:"status"`
	Technician string                 `json:"technician"`
	Entries    []domain.TimelineEntry `json:"entries"`
}

// TimelineResponse is the merged conversation of a ticket.
type TimelineResponse struct {
	TicketID string                 `json:"ticketId"`
	Entries  []domain.TimelineEntry `json:"entries"`
}

// ClosedResponse answers the closed-status check.
type ClosedResponse struct {
	TicketID string `json:"ticketId"`
	Closed   bool   `json:"closed"`
}
