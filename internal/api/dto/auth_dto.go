package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// CustomerRegisterRequest payload for new customers.
type CustomerRegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CustomerLoginRequest accepts a username or an email as login.
type CustomerLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// TechnicianRegisterRequest adds a technician to the directory.
type TechnicianRegisterRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Specialty string `json:"specialty"`
}

// TechnicianLoginRequest payload.
type TechnicianLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
}
