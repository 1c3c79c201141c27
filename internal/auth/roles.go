package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// RequireCustomer ensures a customer is authenticated.
func RequireCustomer() fiber.Handler {
	return requireRole(domain.RoleCustomer, "customer required")
}

// RequireTechnician ensures a technician is authenticated.
func RequireTechnician() fiber.Handler {
	return requireRole(domain.RoleTechnician, "technician required")
}

func requireRole(role domain.Role, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Role != role {
			return apperrors.NewForbidden(message)
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated (customer or technician).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
