package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/repository/memory"
)

type sent struct {
	Room    string
	Role    domain.Role
	Event   string
	Payload any
}

// recordingRooms captures every broadcast and tracks close requests per room.
type recordingRooms struct {
	mu      sync.Mutex
	sent    []sent
	joined  map[string][]string
	pending map[string]bool
}

func newRecordingRooms() *recordingRooms {
	return &recordingRooms{joined: map[string][]string{}, pending: map[string]bool{}}
}

func (r *recordingRooms) Broadcast(_ context.Context, ticketID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{Room: ticketID, Event: event, Payload: payload})
}

func (r *recordingRooms) BroadcastToRole(_ context.Context, role domain.Role, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{Role: role, Event: event, Payload: payload})
}

func (r *recordingRooms) Join(sessionID, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined[ticketID] = append(r.joined[ticketID], sessionID)
	return nil
}

func (r *recordingRooms) BeginClose(ticketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[ticketID] {
		return false
	}
	r.pending[ticketID] = true
	return true
}

func (r *recordingRooms) EndClose(ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, ticketID)
}

func (r *recordingRooms) events(name string) []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sent
	for _, s := range r.sent {
		if s.Event == name {
			out = append(out, s)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	clock       *fakeClock
	rooms       *recordingRooms
	dispatcher  events.Dispatcher
	tickets     *memory.TicketStore
	messages    *memory.MessageStore
	files       *memory.FileStore
	technicians *memory.TechnicianStore
	timeline    *TimelineService
	ticketSvc   *TicketService
	chat        *ChatService
}

func newHarness(t *testing.T, fallbackAny bool, technicians ...domain.Technician) *harness {
	t.Helper()
	if len(technicians) == 0 {
		technicians = directory()
	}
	h := &harness{
		clock:       newFakeClock(time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)),
		rooms:       newRecordingRooms(),
		dispatcher:  events.NewInMemoryDispatcher(),
		tickets:     memory.NewTicketStore(),
		messages:    memory.NewMessageStore(),
		files:       memory.NewFileStore(),
		technicians: memory.NewTechnicianStore(technicians...),
	}
	h.timeline = NewTimelineService(TimelineDependencies{
		TicketRepo:  h.tickets,
		MessageRepo: h.messages,
		FileRepo:    h.files,
		Dispatcher:  h.dispatcher,
		Now:         h.clock.Now,
	})
	h.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo:     h.tickets,
		TechnicianRepo: h.technicians,
		Assignment:     NewAssignmentService(AssignmentDependencies{}),
		Timeline:       h.timeline,
		Broadcaster:    h.rooms,
		ClosePrompts:   h.rooms,
		Dispatcher:     h.dispatcher,
		Now:            h.clock.Now,
		FallbackAny:    fallbackAny,
	})
	h.chat = NewChatService(ChatDependencies{
		Tickets:        h.ticketSvc,
		Timeline:       h.timeline,
		Rooms:          h.rooms,
		Uploads:        &memorySink{},
		MaxUploadBytes: 1024,
		Now:            h.clock.Now,
	})
	return h
}

// openTicket creates a network ticket for customer Maria.
func (h *harness) openTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	created, err := h.ticketSvc.Create(context.Background(), domain.CustomerSender("c-1", "Maria"), TicketCreateInput{
		Title:       "Sem internet",
		Description: "o wifi do escritorio caiu",
	})
	require.NoError(t, err)
	return created.Ticket
}

func (h *harness) startedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := h.openTicket(t)
	_, err := h.ticketSvc.Start(context.Background(), ticket.ID)
	require.NoError(t, err)
	return ticket
}
