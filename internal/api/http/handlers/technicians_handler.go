package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-chat/internal/api/dto"
	"github.com/spec-kit/helpdesk-chat/internal/service"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// TechniciansHandler exposes technician auth and the technician dashboard.
type TechniciansHandler struct {
	auth    *service.AuthService
	tickets *service.TicketService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(authService *service.AuthService, tickets *service.TicketService) *TechniciansHandler {
	return &TechniciansHandler{auth: authService, tickets: tickets}
}

// Register handles POST /auth/technicians/register.
func (h *TechniciansHandler) Register(c *fiber.Ctx) error {
	var req dto.TechnicianRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.auth.RegisterTechnician(c.UserContext(), service.TechnicianRegistration{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Specialty: req.Specialty,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(session)})
}

// Login handles POST /auth/technicians/login.
func (h *TechniciansHandler) Login(c *fiber.Ctx) error {
	var req dto.TechnicianLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", map[string]any{
			"email":    "must not be blank",
			"password": "must not be blank",
		})
	}
	session, err := h.auth.LoginTechnician(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(session)})
}

// MyTickets handles GET /api/technicians/me/tickets?status=OPEN,IN_PROGRESS.
func (h *TechniciansHandler) MyTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if principal.Technician == nil {
		return apperrors.NewForbidden("technician required")
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListForTechnician(c.UserContext(), principal.Technician.ID, statuses)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}
