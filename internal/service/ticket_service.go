package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/observability"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// TicketService drives the ticket lifecycle and announces every committed change.
type TicketService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	assignment  *AssignmentService
	timeline    *TimelineService
	broadcaster Broadcaster
	prompts     ClosePrompts
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	fallbackAny bool
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	Assignment     *AssignmentService
	Timeline       *TimelineService
	Broadcaster    Broadcaster
	ClosePrompts   ClosePrompts
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Now            func() time.Time
	// FallbackAny assigns the least loaded technician overall when no specialist matches.
	FallbackAny bool
}

// ClosePrompts tracks close requests awaiting the customer's answer.
type ClosePrompts interface {
	EndClose(ticketID string)
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// TicketCreation is returned to the caller that opened a ticket.
type TicketCreation struct {
	Ticket         *domain.Ticket
	Assignment     Assignment
	RedirectTarget string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		assignment:  deps.Assignment,
		timeline:    deps.Timeline,
		broadcaster: deps.Broadcaster,
		prompts:     deps.ClosePrompts,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Now,
		fallbackAny: deps.FallbackAny,
	}
}

// Create routes the problem to a technician and persists the ticket as OPEN.
// Nothing is stored when no technician can be assigned.
func (s *TicketService) Create(ctx context.Context, creator domain.Sender, input TicketCreateInput) (*TicketCreation, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	problems := map[string]any{}
	if title == "" {
		problems["title"] = "must not be blank"
	}
	if description == "" {
		problems["description"] = "must not be blank"
	}
	if strings.TrimSpace(creator.Name) == "" {
		problems["creator"] = "must not be blank"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", problems)
	}

	technicians, err := s.technicians.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	load, err := s.tickets.CountActiveByTechnician(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	assignment, err := s.assignment.Assign(ctx, description, technicians, load)
	if err != nil && apperrors.IsCode(err, apperrors.CodeNoTechnicianAvailable) && s.fallbackAny {
		s.logger.Info("no specialist available; falling back to any technician",
			zap.String("specialty", string(assignment.Specialty)))
		specialty := assignment.Specialty
		assignment, err = s.assignment.AssignAny(technicians, load)
		assignment.Specialty = specialty
	}
	if err != nil {
		return nil, err
	}

	technicianID := assignment.Technician.ID
	ticket := &domain.Ticket{
		Title:          title,
		Description:    description,
		Status:         domain.TicketStatusOpen,
		CreatorID:      creator.ID,
		CreatorName:    creator.Name,
		TechnicianID:   &technicianID,
		TechnicianName: assignment.Technician.Name,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("technician", ticket.TechnicianName),
		zap.String("specialty", string(assignment.Specialty)),
		zap.Bool("advised", assignment.Advised))

	s.broadcastToRole(ctx, domain.RoleTechnician, events.NewTicket, events.NewTicketPayload{
		TicketID:       ticket.ID,
		Title:          ticket.Title,
		Customer:       ticket.CreatorName,
		TechnicianID:   technicianID,
		TechnicianName: ticket.TechnicianName,
		Specialty:      string(assignment.Specialty),
		CreatedAt:      ticket.CreatedAt,
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Actor:     events.ActorFrom(creator),
		Timestamp: ticket.CreatedAt,
		Payload: events.TicketCreatedPayload{
			Title:        ticket.Title,
			Specialty:    string(assignment.Specialty),
			TechnicianID: technicianID,
			Advised:      assignment.Advised,
		},
	})

	return &TicketCreation{
		Ticket:         ticket,
		Assignment:     assignment,
		RedirectTarget: fmt.Sprintf("/tickets/%s/chat", ticket.ID),
	}, nil
}

// Start moves an OPEN ticket to IN_PROGRESS. An existing start time is kept.
func (s *TicketService) Start(ctx context.Context, ticketID string) (status domain.TicketStatus, err error) {
	defer func() { s.metrics.RecordTransition("start", err) }()

	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return "", err
	}
	if ticket.Status != domain.TicketStatusOpen {
		return ticket.Status, transitionError(ticket.Status)
	}

	previous := ticket.Status
	if ticket.StartedAt == nil {
		now := s.now().UTC()
		ticket.StartedAt = &now
	}
	ticket.ClearClosure()
	ticket.Status = domain.TicketStatusInProgress
	if err := s.save(ctx, ticket, previous); err != nil {
		return "", err
	}

	s.publishStatusChanged(ctx, ticket.ID, previous, ticket.Status)
	return ticket.Status, nil
}

// Close ends service on an IN_PROGRESS ticket. Of two concurrent calls only one
// succeeds; the other observes ALREADY_CLOSED.
func (s *TicketService) Close(ctx context.Context, ticketID string) (closed *domain.Ticket, err error) {
	defer func() { s.metrics.RecordTransition("close", err) }()

	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, transitionError(ticket.Status)
	}
	if ticket.StartedAt == nil {
		return nil, apperrors.NewInvalidTransition(apperrors.ReasonNotStarted, string(ticket.Status))
	}

	previous := ticket.Status
	end := s.now().UTC()
	elapsed := end.Sub(*ticket.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	ticket.EndedAt = &end
	ticket.ServiceDuration = &elapsed
	ticket.Status = domain.TicketStatusClosed
	if err := s.save(ctx, ticket, previous); err != nil {
		return nil, err
	}

	s.endClosePrompt(ticket.ID)
	s.logger.Info("ticket closed",
		zap.String("ticket_id", ticket.ID),
		zap.Duration("service_duration", elapsed))

	s.broadcast(ctx, ticket.ID, events.ChatClosed, events.ChatClosedPayload{
		TicketID:   ticket.ID,
		Status:     ticket.Status,
		Duration:   domain.FormatDuration(elapsed),
		Technician: ticket.TechnicianName,
		Customer:   ticket.CreatorName,
	})
	s.broadcast(ctx, ticket.ID, events.TechnicianClosePrompt, events.TicketRef{TicketID: ticket.ID})
	s.publishStatusChanged(ctx, ticket.ID, previous, ticket.Status)
	return ticket, nil
}

// Reopen returns a CLOSED ticket to IN_PROGRESS under the named technician and
// sends the room the whole conversation.
func (s *TicketService) Reopen(ctx context.Context, ticketID, technicianName string) (reopened *domain.Ticket, entries []domain.TimelineEntry, err error) {
	defer func() { s.metrics.RecordTransition("reopen", err) }()

	if strings.TrimSpace(technicianName) == "" {
		return nil, nil, apperrors.NewValidationError("technician is required", map[string]any{"technician": "must not be blank"})
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, nil, err
	}
	technician, err := s.technicians.GetByName(ctx, strings.TrimSpace(technicianName))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("technician", map[string]any{"technician": technicianName})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if ticket.Status != domain.TicketStatusClosed {
		return nil, nil, apperrors.NewInvalidTransition(apperrors.ReasonNotClosed, string(ticket.Status))
	}

	previous := ticket.Status
	technicianID := technician.ID
	ticket.TechnicianID = &technicianID
	ticket.TechnicianName = technician.Name
	ticket.Status = domain.TicketStatusInProgress
	ticket.ClearClosure()
	if ticket.StartedAt == nil {
		now := s.now().UTC()
		ticket.StartedAt = &now
	}
	entries, err = s.timeline.mergeFor(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	if err := s.save(ctx, ticket, previous); err != nil {
		return nil, nil, err
	}
	s.endClosePrompt(ticket.ID)

	s.broadcast(ctx, ticket.ID, events.ChatReopened, events.ChatReopenedPayload{
		TicketID:   ticket.ID,
		Technician: technician.Name,
		Entries:    entries,
	})
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketAssigned,
		TicketID:  ticket.ID,
		Actor:     events.Actor{Role: domain.RoleTechnician, ID: technician.ID, Name: technician.Name},
		Timestamp: s.now().UTC(),
		Payload: events.TicketAssignedPayload{
			TechnicianID:   technician.ID,
			TechnicianName: technician.Name,
		},
	})
	s.publishStatusChanged(ctx, ticket.ID, previous, ticket.Status)
	return ticket, entries, nil
}

// CheckClosed reports true for CLOSED tickets and, fail-safe, for tickets that cannot be read.
func (s *TicketService) CheckClosed(ctx context.Context, ticketID string) bool {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("status check failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return true
	}
	return ticket.Status.IsTerminal()
}

// Get returns a single ticket.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return loadTicket(ctx, s.tickets, ticketID)
}

// ListByCreator returns tickets opened by the named customer, newest first.
func (s *TicketService) ListByCreator(ctx context.Context, creatorName string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	if strings.TrimSpace(creatorName) == "" {
		return nil, apperrors.NewValidationError("creator is required", map[string]any{"creator": "must not be blank"})
	}
	name := strings.TrimSpace(creatorName)
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{CreatorName: &name, Statuses: statuses})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListForTechnician returns the technician's tickets, optionally narrowed by status.
func (s *TicketService) ListForTechnician(ctx context.Context, technicianID string, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	if strings.TrimSpace(technicianID) == "" {
		return nil, apperrors.NewValidationError("technician is required", map[string]any{"technician": "must not be blank"})
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{TechnicianID: &technicianID, Statuses: statuses})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// save persists ticket if its stored status is still previous. A lost race is
// reported against the status that won.
func (s *TicketService) save(ctx context.Context, ticket *domain.Ticket, previous domain.TicketStatus) error {
	err := s.tickets.UpdateIfStatus(ctx, ticket, previous)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	case errors.Is(err, repository.ErrStatusConflict):
		current, loadErr := loadTicket(ctx, s.tickets, ticket.ID)
		if loadErr != nil {
			return loadErr
		}
		return transitionError(current.Status)
	default:
		s.logger.Error("ticket update failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return apperrors.MapError(err)
	}
}

func (s *TicketService) endClosePrompt(ticketID string) {
	if s.prompts != nil {
		s.prompts.EndClose(ticketID)
	}
}

func (s *TicketService) broadcast(ctx context.Context, ticketID, event string, payload any) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, ticketID, event, payload)
	}
}

func (s *TicketService) broadcastToRole(ctx context.Context, role domain.Role, event string, payload any) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToRole(ctx, role, event, payload)
	}
}

func (s *TicketService) publishStatusChanged(ctx context.Context, ticketID string, from, to domain.TicketStatus) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticketID,
		Actor:     events.Actor{Role: domain.RoleSystem},
		Timestamp: s.now().UTC(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: to,
		},
	})
}

func transitionError(current domain.TicketStatus) error {
	switch current {
	case domain.TicketStatusInProgress:
		return apperrors.NewInvalidTransition(apperrors.ReasonAlreadyInProgress, string(current))
	case domain.TicketStatusClosed:
		return apperrors.NewInvalidTransition(apperrors.ReasonAlreadyClosed, string(current))
	default:
		return apperrors.NewInvalidTransition(apperrors.ReasonNotStarted, string(current))
	}
}
