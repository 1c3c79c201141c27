package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-chat/internal/auth"
	"github.com/spec-kit/helpdesk-chat/internal/config"
	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// AuthService coordinates registration and login for customers and technicians.
type AuthService struct {
	customers   repository.CustomerRepository
	technicians repository.TechnicianRepository
	tokenMgr    *auth.TokenManager
	bcryptCost  int
	now         func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	CustomerRepo   repository.CustomerRepository
	TechnicianRepo repository.TechnicianRepository
	TokenManager   *auth.TokenManager
	Now            func() time.Time
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Sender    domain.Sender
}

// TechnicianRegistration carries the fields needed to add a technician to the directory.
type TechnicianRegistration struct {
	Name      string
	Email     string
	Password  string
	Specialty string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	if deps.TokenManager == nil {
		deps.TokenManager = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AuthService{
		customers:   deps.CustomerRepo,
		technicians: deps.TechnicianRepo,
		tokenMgr:    deps.TokenManager,
		bcryptCost:  cfg.BcryptCost,
		now:         deps.Now,
	}
}

// RegisterCustomer creates a customer account. The username is the chat display name.
func (s *AuthService) RegisterCustomer(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	problems := credentialProblems(email, password)
	if username == "" {
		problems["username"] = "must not be blank"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", problems)
	}

	if err := ensureAbsent(s.customers.GetByEmail(ctx, email)); err != nil {
		return nil, withConflict(err, "email already registered", "email")
	}
	if err := ensureAbsent(s.customers.GetByUsername(ctx, username)); err != nil {
		return nil, withConflict(err, "username already taken", "username")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	customer := &domain.Customer{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.issue(domain.CustomerSender(customer.ID, customer.Username))
}

// LoginCustomer authenticates by username or email.
func (s *AuthService) LoginCustomer(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	lookup := s.customers.GetByUsername
	if strings.Contains(login, "@") {
		lookup = s.customers.GetByEmail
	}
	customer, err := lookup(ctx, login)
	if err != nil {
		return nil, invalidCredentials(err)
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(domain.CustomerSender(customer.ID, customer.Username))
}

// RegisterTechnician adds a technician to the directory.
func (s *AuthService) RegisterTechnician(ctx context.Context, input TechnicianRegistration) (*Session, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Specialty = strings.TrimSpace(input.Specialty)
	problems := credentialProblems(input.Email, input.Password)
	if input.Name == "" {
		problems["name"] = "must not be blank"
	}
	if input.Specialty == "" {
		problems["specialty"] = "must not be blank"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", problems)
	}

	if err := ensureAbsent(s.technicians.GetByEmail(ctx, input.Email)); err != nil {
		return nil, withConflict(err, "email already registered", "email")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	technician := &domain.Technician{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Specialty:    input.Specialty,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.technicians.Create(ctx, technician); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.issue(domain.TechnicianSender(technician.ID, technician.Name))
}

// LoginTechnician authenticates a technician by email.
func (s *AuthService) LoginTechnician(ctx context.Context, email, password string) (*Session, error) {
	technician, err := s.technicians.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, invalidCredentials(err)
	}
	if err := auth.ComparePassword(technician.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(domain.TechnicianSender(technician.ID, technician.Name))
}

func (s *AuthService) issue(sender domain.Sender) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(sender.ID, sender.Role, sender.Name)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: exp, Sender: sender}, nil
}

func credentialProblems(email, password string) map[string]any {
	problems := map[string]any{}
	if !strings.Contains(email, "@") {
		problems["email"] = "must be a valid email"
	}
	if len(password) < auth.MinPasswordLength {
		problems["password"] = "must have at least 6 characters"
	}
	return problems
}

var errAlreadyExists = errors.New("already exists")

// ensureAbsent turns a lookup result into nil when nothing was found.
func ensureAbsent[T any](_ T, err error) error {
	if err == nil {
		return errAlreadyExists
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func withConflict(err error, message, field string) error {
	if errors.Is(err, errAlreadyExists) {
		return apperrors.NewConflict(message, map[string]any{"field": field})
	}
	return apperrors.MapError(err)
}

func invalidCredentials(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return apperrors.MapError(err)
}
