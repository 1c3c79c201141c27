package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-chat/internal/api/dto"
	"github.com/spec-kit/helpdesk-chat/internal/auth"
	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/service"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints shared by customers and technicians.
type TicketsHandler struct {
	tickets  *service.TicketService
	timeline *service.TimelineService
	chat     *service.ChatService
	history  *service.HistoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, timeline *service.TimelineService, chat *service.ChatService, history *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, timeline: timeline, chat: chat, history: history}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	created, err := h.tickets.Create(c.UserContext(), principal.Sender(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		TicketID:           created.Ticket.ID,
		AssignedTechnician: created.Ticket.TechnicianName,
		Specialty:          string(created.Assignment.Specialty),
		RedirectTarget:     created.RedirectTarget,
	}})
}

// ListTickets GET /api/tickets?creator=&status=. Customers default to their own tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	creator := strings.TrimSpace(c.Query("creator"))
	if creator == "" && principal.Role == domain.RoleCustomer {
		creator = principal.Sender().Name
	}

	tickets, err := h.tickets.ListByCreator(c.UserContext(), creator, statuses)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// Timeline GET /api/tickets/:id/timeline.
func (h *TicketsHandler) Timeline(c *fiber.Ctx) error {
	entries, err := h.timeline.Merge(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TimelineResponse{TicketID: c.Params("id"), Entries: entries}})
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.history.List(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Closed GET /api/tickets/:id/closed. Unknown tickets read as closed.
func (h *TicketsHandler) Closed(c *fiber.Ctx) error {
	id := c.Params("id")
	return c.JSON(fiber.Map{"data": dto.ClosedResponse{
		TicketID: id,
		Closed:   h.tickets.CheckClosed(c.UserContext(), id),
	}})
}

// Start POST /api/tickets/:id/start.
func (h *TicketsHandler) Start(c *fiber.Ctx) error {
	status, err := h.tickets.Start(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusResponse{TicketID: c.Params("id"), Status: status}})
}

// Close POST /api/tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	ticket, err := h.tickets.Close(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.StatusResponse{TicketID: ticket.ID, Status: ticket.Status}
	if ticket.ServiceDuration != nil {
		resp.Duration = domain.FormatDuration(*ticket.ServiceDuration)
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Reopen POST /api/tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReopenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	technician := strings.TrimSpace(req.Technician)
	if technician == "" {
		technician = principal.Sender().Name
	}

	ticket, entries, err := h.tickets.Reopen(c.UserContext(), c.Params("id"), technician)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReopenResponse{
		TicketID:   ticket.ID,
		Status:     ticket.Status,
		Technician: ticket.TechnicianName,
		Entries:    entries,
	}})
}

// Upload POST /api/tickets/:id/files as multipart field "file".
func (h *TicketsHandler) Upload(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"file": "must be provided"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	entry, err := h.chat.UploadFile(c.UserContext(), principal.Sender(), c.Params("id"), header.Filename, header.Size, file)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": entry})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseStatuses(raw string) ([]domain.TicketStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var statuses []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part)))
		switch status {
		case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusClosed:
			statuses = append(statuses, status)
		default:
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
		}
	}
	return statuses, nil
}

func ticketSummaries(tickets []domain.Ticket) []dto.TicketSummary {
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.TicketSummary{
			ID:         t.ID,
			Title:      t.Title,
			Status:     t.Status,
			Customer:   t.CreatorName,
			Technician: t.TechnicianName,
			CreatedAt:  t.CreatedAt,
		})
	}
	return items
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Status:       ticket.Status,
		Customer:     ticket.CreatorName,
		TechnicianID: ticket.TechnicianID,
		Technician:   ticket.TechnicianName,
		CreatedAt:    ticket.CreatedAt,
		StartedAt:    ticket.StartedAt,
		EndedAt:      ticket.EndedAt,
	}
	if elapsed, ok := ticket.Elapsed(); ok {
		resp.Duration = domain.FormatDuration(elapsed)
	}
	return resp
}
