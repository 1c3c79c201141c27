package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
	"github.com/spec-kit/helpdesk-chat/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

func TestCreateAssignsAndAnnounces(t *testing.T) {
	h := newHarness(t, false)
	var published []events.Event
	h.dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})

	created, err := h.ticketSvc.Create(context.Background(), domain.CustomerSender("c-1", "Maria"), TicketCreateInput{
		Title:       "  Sem internet ",
		Description: "o wifi do escritorio caiu",
	})
	require.NoError(t, err)

	ticket := created.Ticket
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, "Sem internet", ticket.Title)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "Ana", ticket.TechnicianName)
	require.NotNil(t, ticket.TechnicianID)
	assert.Equal(t, "ana", *ticket.TechnicianID)
	assert.Nil(t, ticket.StartedAt)
	assert.Equal(t, SpecialtyNetwork, created.Assignment.Specialty)
	assert.Equal(t, "/tickets/"+ticket.ID+"/chat", created.RedirectTarget)

	stored, err := h.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria", stored.CreatorName)

	global := h.rooms.events(events.NewTicket)
	require.Len(t, global, 1)
	assert.Empty(t, global[0].Room)
	assert.Equal(t, domain.RoleTechnician, global[0].Role)
	payload := global[0].Payload.(events.NewTicketPayload)
	assert.Equal(t, ticket.ID, payload.TicketID)
	assert.Equal(t, "Ana", payload.TechnicianName)
	assert.Equal(t, "Network", payload.Specialty)

	require.Len(t, published, 1)
	assert.Equal(t, ticket.ID, published[0].TicketID)
	assert.Equal(t, "Maria", published[0].Actor.Name)
}

func TestCreateSpreadsLoadAcrossSpecialists(t *testing.T) {
	h := newHarness(t, false)
	first := h.openTicket(t)
	second := h.openTicket(t)
	assert.Equal(t, "Ana", first.TechnicianName)
	assert.Equal(t, "Bruno", second.TechnicianName)
}

func TestCreateValidatesInput(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.ticketSvc.Create(context.Background(), domain.CustomerSender("c-1", ""), TicketCreateInput{Title: " "})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Contains(t, de.Details, "title")
	assert.Contains(t, de.Details, "description")
	assert.Contains(t, de.Details, "creator")
}

func TestCreateWithoutSpecialistPersistsNothing(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.ticketSvc.Create(context.Background(), domain.CustomerSender("c-1", "Maria"), TicketCreateInput{
		Title:       "Impressora",
		Description: "a impressora esta quebrada",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoTechnicianAvailable))

	all, err := h.tickets.ListWithFilter(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, h.rooms.events(events.NewTicket))
}

func TestCreateFallsBackToAnyTechnician(t *testing.T) {
	h := newHarness(t, true)
	created, err := h.ticketSvc.Create(context.Background(), domain.CustomerSender("c-1", "Maria"), TicketCreateInput{
		Title:       "Impressora",
		Description: "a impressora esta quebrada",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", created.Ticket.TechnicianName)
	assert.Equal(t, SpecialtyHardware, created.Assignment.Specialty)
}

func TestStartIsOnlyValidFromOpen(t *testing.T) {
	h := newHarness(t, false)
	ticket := h.openTicket(t)

	status, err := h.ticketSvc.Start(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, status)

	started, err := h.ticketSvc.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, h.clock.Now(), *started.StartedAt)

	status, err = h.ticketSvc.Start(context.Background(), ticket.ID)
	require.Error(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, status)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
	assert.Equal(t, apperrors.ReasonAlreadyInProgress, apperrors.Reason(err))
}

func TestStartUnknownTicket(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.ticketSvc.Start(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCloseRequiresStart(t *testing.T) {
	h := newHarness(t, false)
	ticket := h.openTicket(t)

	_, err := h.ticketSvc.Close(context.Background(), ticket.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonNotStarted, apperrors.Reason(err))

	stored, _ := h.ticketSvc.Get(context.Background(), ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Empty(t, h.rooms.events(events.ChatClosed))
}

func TestCloseRecordsDurationAndNotifiesRoom(t *testing.T) {
	h := newHarness(t, false)
	h.clock.Set(time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC))
	ticket := h.startedTicket(t)

	h.clock.Set(time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC))
	closed, err := h.ticketSvc.Close(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ServiceDuration)
	assert.Equal(t, 30*time.Minute, *closed.ServiceDuration)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, h.clock.Now(), *closed.EndedAt)

	notices := h.rooms.events(events.ChatClosed)
	require.Len(t, notices, 1)
	assert.Equal(t, ticket.ID, notices[0].Room)
	payload := notices[0].Payload.(events.ChatClosedPayload)
	assert.Equal(t, "00:30:00", payload.Duration)
	assert.Equal(t, "Ana", payload.Technician)
	assert.Equal(t, "Maria", payload.Customer)
	assert.Len(t, h.rooms.events(events.TechnicianClosePrompt), 1)

	_, err = h.ticketSvc.Close(context.Background(), ticket.ID)
	assert.Equal(t, apperrors.ReasonAlreadyClosed, apperrors.Reason(err))
	assert.Len(t, h.rooms.events(events.ChatClosed), 1)
}

func TestConcurrentCloseHasSingleWinner(t *testing.T) {
	h := newHarness(t, false)
	ticket := h.startedTicket(t)
	h.clock.Advance(5 * time.Minute)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		reasons []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ticketSvc.Close(context.Background(), ticket.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			reasons = append(reasons, apperrors.Reason(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	require.Len(t, reasons, callers-1)
	for _, r := range reasons {
		assert.Equal(t, apperrors.ReasonAlreadyClosed, r)
	}
	assert.Len(t, h.rooms.events(events.ChatClosed), 1)
}

func TestReopenResetsClosureAndResyncsRoom(t *testing.T) {
	h := newHarness(t, false)
	ticket := h.startedTicket(t)
	startedAt := h.clock.Now()

	_, err := h.timeline.AppendMessage(context.Background(), ticket.ID, domain.CustomerSender("c-1", "Maria"), "ainda sem rede")
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.timeline.AppendMessage(context.Background(), ticket.ID, domain.TechnicianSender("ana", "Ana"), "verificando")
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	_, err = h.ticketSvc.Close(context.Background(), ticket.ID)
	require.NoError(t, err)

	_, _, err = h.ticketSvc.Reopen(context.Background(), ticket.ID, "Nobody")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	reopened, entries, err := h.ticketSvc.Reopen(context.Background(), ticket.ID, "bruno")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, reopened.Status)
	assert.Equal(t, "Bruno", reopened.TechnicianName)
	assert.Nil(t, reopened.EndedAt)
	assert.Nil(t, reopened.ServiceDuration)
	require.NotNil(t, reopened.StartedAt)
	assert.Equal(t, startedAt, *reopened.StartedAt)
	require.Len(t, entries, 2)
	assert.Equal(t, "ainda sem rede", entries[0].Content)

	resync := h.rooms.events(events.ChatReopened)
	require.Len(t, resync, 1)
	payload := resync[0].Payload.(events.ChatReopenedPayload)
	assert.Equal(t, "Bruno", payload.Technician)
	assert.Len(t, payload.Entries, 2)

	_, _, err = h.ticketSvc.Reopen(context.Background(), ticket.ID, "Bruno")
	assert.Equal(t, apperrors.ReasonNotClosed, apperrors.Reason(err))
}

type failingMessages struct {
	*memory.MessageStore
}

func (failingMessages) ListByTicket(context.Context, string) ([]domain.Message, error) {
	return nil, errors.New("db down")
}

func TestReopenLeavesTicketClosedWhenHistoryUnreadable(t *testing.T) {
	h := newHarness(t, false)
	ticket := h.startedTicket(t)
	_, err := h.ticketSvc.Close(context.Background(), ticket.ID)
	require.NoError(t, err)
	h.timeline.messages = failingMessages{h.messages}

	_, _, err = h.ticketSvc.Reopen(context.Background(), ticket.ID, "Bruno")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))

	stored, err := h.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.Equal(t, "Ana", stored.TechnicianName)
	assert.NotNil(t, stored.EndedAt)
	assert.Empty(t, h.rooms.events(events.ChatReopened))
}

func TestCheckClosedFailsSafe(t *testing.T) {
	h := newHarness(t, false)
	ticket := h.startedTicket(t)

	assert.False(t, h.ticketSvc.CheckClosed(context.Background(), ticket.ID))
	assert.True(t, h.ticketSvc.CheckClosed(context.Background(), "missing"))

	_, err := h.ticketSvc.Close(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, h.ticketSvc.CheckClosed(context.Background(), ticket.ID))
}

func TestListings(t *testing.T) {
	h := newHarness(t, false)
	first := h.openTicket(t)
	h.clock.Advance(time.Minute)
	second := h.openTicket(t)
	_, err := h.ticketSvc.Start(context.Background(), second.ID)
	require.NoError(t, err)

	mine, err := h.ticketSvc.ListByCreator(context.Background(), "Maria", nil)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	open, err := h.ticketSvc.ListForTechnician(context.Background(), "ana", []domain.TicketStatus{domain.TicketStatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)

	_, err = h.ticketSvc.ListByCreator(context.Background(), " ", nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}
