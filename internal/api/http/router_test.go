package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-chat/internal/auth"
	"github.com/spec-kit/helpdesk-chat/internal/config"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/observability"
	"github.com/spec-kit/helpdesk-chat/internal/persistence"
	"github.com/spec-kit/helpdesk-chat/internal/realtime"
	"github.com/spec-kit/helpdesk-chat/internal/service"
	"github.com/spec-kit/helpdesk-chat/internal/storage"
)

type testServer struct {
	app *fiber.App
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	stores := persistence.NewStores(nil)
	hub := realtime.NewHub(realtime.Options{Logger: logger, Metrics: metrics})
	dispatcher := events.NewInMemoryDispatcher()
	history := service.NewHistoryService(stores.Tickets, stores.History, logger)
	history.RegisterHandlers(dispatcher)

	timeline := service.NewTimelineService(service.TimelineDependencies{
		TicketRepo:  stores.Tickets,
		MessageRepo: stores.Messages,
		FileRepo:    stores.Files,
		Dispatcher:  dispatcher,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     stores.Tickets,
		TechnicianRepo: stores.Technicians,
		Assignment:     service.NewAssignmentService(service.AssignmentDependencies{Metrics: metrics}),
		Timeline:       timeline,
		Broadcaster:    hub,
		ClosePrompts:   hub,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	})
	sink, err := storage.NewSink(afero.NewMemMapFs(), config.UploadConfig{Dir: "uploads", PublicPrefix: "/uploads", MaxBytes: 1024}, logger)
	require.NoError(t, err)
	chat := service.NewChatService(service.ChatDependencies{
		Tickets:        tickets,
		Timeline:       timeline,
		Rooms:          hub,
		Uploads:        sink,
		MaxUploadBytes: 1024,
	})
	tokens := auth.NewTokenManager("test-secret", 30)
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: 4}, service.AuthDependencies{
		CustomerRepo:   stores.Customers,
		TechnicianRepo: stores.Technicians,
		TokenManager:   tokens,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-chat", "test", nil, nil, hub),
		Customers:      handlers.NewCustomersHandler(authService),
		Technicians:    handlers.NewTechniciansHandler(authService, tickets),
		Tickets:        handlers.NewTicketsHandler(tickets, timeline, chat, history),
		Chat:           handlers.NewChatHandler(hub, chat, 0, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, stores.Customers, stores.Technicians),
		Metrics:        metrics,
	})
	return &testServer{app: app, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, gjson.Result) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(raw)
}

func (s *testServer) register(t *testing.T) (customer, technician string) {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/auth/technicians/register", "", map[string]string{
		"name": "Bruno", "email": "bruno@example.com", "password": "segredo", "specialty": "Redes",
	})
	require.Equal(t, fiber.StatusCreated, status, body.Raw)
	technician = body.Get("data.token").String()

	status, body = s.do(t, fiber.MethodPost, "/auth/customers/register", "", map[string]string{
		"username": "Maria", "email": "maria@example.com", "password": "segredo",
	})
	require.Equal(t, fiber.StatusCreated, status, body.Raw)
	customer = body.Get("data.token").String()
	return customer, technician
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	customer, technician := s.register(t)

	status, body := s.do(t, fiber.MethodPost, "/api/tickets", customer, map[string]string{
		"title": "Sem internet", "description": "sem internet, wifi caindo",
	})
	require.Equal(t, fiber.StatusCreated, status, body.Raw)
	ticketID := body.Get("data.ticketId").String()
	assert.Equal(t, "Bruno", body.Get("data.assignedTechnician").String())
	assert.Equal(t, "Network", body.Get("data.specialty").String())
	assert.Equal(t, "/tickets/"+ticketID+"/chat", body.Get("data.redirectTarget").String())

	status, body = s.do(t, fiber.MethodGet, "/api/tickets", customer, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), body.Get("data.#").Int())

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticketID+"/close", technician, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body.Get("error.code").String())
	assert.Equal(t, "NOT_STARTED", body.Get("error.details.reason").String())

	status, _ = s.do(t, fiber.MethodPost, "/api/tickets/"+ticketID+"/start", customer, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticketID+"/start", technician, nil)
	require.Equal(t, fiber.StatusOK, status, body.Raw)
	assert.Equal(t, "IN_PROGRESS", body.Get("data.status").String())

	status, body = s.do(t, fiber.MethodGet, "/api/technicians/me/tickets?status=IN_PROGRESS", technician, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, ticketID, body.Get("data.0.id").String())

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticketID+"/close", customer, nil)
	require.Equal(t, fiber.StatusOK, status, body.Raw)
	assert.Equal(t, "CLOSED", body.Get("data.status").String())
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}$`, body.Get("data.duration").String())

	_, body = s.do(t, fiber.MethodGet, "/api/tickets/"+ticketID+"/closed", customer, nil)
	assert.True(t, body.Get("data.closed").Bool())

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticketID+"/reopen", technician, nil)
	require.Equal(t, fiber.StatusOK, status, body.Raw)
	assert.Equal(t, "IN_PROGRESS", body.Get("data.status").String())
	assert.Equal(t, "Bruno", body.Get("data.technician").String())

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/"+ticketID, customer, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Maria", body.Get("data.customer").String())
	assert.Equal(t, gjson.Null, body.Get("data.endedAt").Type)

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/"+ticketID+"/history", customer, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "created", body.Get("data.0.change").String())
	assert.Equal(t, int64(5), body.Get("data.#").Int())
}

func TestCreateTicketErrors(t *testing.T) {
	s := newTestServer(t)
	customer, technician := s.register(t)

	status, body := s.do(t, fiber.MethodPost, "/api/tickets", customer, map[string]string{"title": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Get("error.code").String())
	assert.True(t, body.Get("error.details.title").Exists())
	assert.True(t, body.Get("error.details.description").Exists())

	status, body = s.do(t, fiber.MethodPost, "/api/tickets", customer, map[string]string{
		"title": "Impressora", "description": "impressora quebrada",
	})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "NO_TECHNICIAN_AVAILABLE", body.Get("error.code").String())

	status, _ = s.do(t, fiber.MethodPost, "/api/tickets", technician, map[string]string{"title": "x", "description": "y"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = s.do(t, fiber.MethodPost, "/api/tickets", "", map[string]string{"title": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Get("error.code").String())
}

func TestTimelineAndUpload(t *testing.T) {
	s := newTestServer(t)
	customer, _ := s.register(t)
	_, body := s.do(t, fiber.MethodPost, "/api/tickets", customer, map[string]string{
		"title": "Sem internet", "description": "roteador sem sinal",
	})
	ticketID := body.Get("data.ticketId").String()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "print.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets/"+ticketID+"/files", &buf)
	req.Header.Set(fiber.HeaderContentType, form.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+customer)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	status, body := s.do(t, fiber.MethodGet, "/api/tickets/"+ticketID+"/timeline", customer, nil)
	require.Equal(t, fiber.StatusOK, status)
	entries := body.Get("data.entries").Array()
	require.Len(t, entries, 1)
	assert.Equal(t, "image", entries[0].Get("kind").String())
	assert.Equal(t, "print.png", entries[0].Get("originalName").String())
	assert.True(t, strings.HasPrefix(entries[0].Get("content").String(), "file:/uploads/"))
	assert.Equal(t, "customer", entries[0].Get("role").String())

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/missing/timeline", customer, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Get("error.code").String())
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(0), body.Get("realtime.sessions").Int())

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "disabled", body.Get("dependencies.postgres").String())

	status, _ = s.do(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")

	status, _ = s.do(t, fiber.MethodGet, "/ws", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
