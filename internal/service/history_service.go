package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// HistoryService keeps an audit trail of lifecycle events.
type HistoryService struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	logger  *zap.Logger
}

// NewHistoryService creates the service.
func NewHistoryService(tickets repository.TicketRepository, history repository.TicketHistoryRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{tickets: tickets, history: history, logger: logger}
}

// RegisterHandlers subscribes the recorder to lifecycle events.
func (s *HistoryService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, s.record)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.record)
	dispatcher.Subscribe(events.EventTicketAssigned, s.record)
}

// List returns the ticket's audit trail, oldest first.
func (s *HistoryService) List(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := loadTicket(ctx, s.tickets, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *HistoryService) record(ctx context.Context, event events.Event) error {
	entry := historyEntry(event)
	if entry == nil {
		return nil
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record ticket history",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

func historyEntry(event events.Event) *domain.TicketHistory {
	entry := &domain.TicketHistory{
		TicketID:  event.TicketID,
		ActorRole: event.Actor.Role,
		ActorID:   optionalID(event.Actor.ID),
		ActorName: event.Actor.Name,
		CreatedAt: event.Timestamp,
	}
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		entry.Change = domain.HistoryCreated
		entry.NewValue = optionalID(payload.TechnicianID)
	case events.TicketStatusChangedPayload:
		entry.Change = domain.HistoryStatus
		entry.OldValue = optionalID(string(payload.OldStatus))
		entry.NewValue = optionalID(string(payload.NewStatus))
	case events.TicketAssignedPayload:
		entry.Change = domain.HistoryAssigned
		entry.NewValue = optionalID(payload.TechnicianID)
	default:
		return nil
	}
	return entry
}
