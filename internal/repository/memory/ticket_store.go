package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
)

// TicketStore keeps tickets in process memory. Updates are compare-and-swap on status.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	order   []string
}

func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]*domain.Ticket)}
}

func (s *TicketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	s.order = append(s.order, ticket.ID)
	return nil
}

func (s *TicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTicket(ticket), nil
}

func (s *TicketStore) UpdateIfStatus(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expected {
		return repository.ErrStatusConflict
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (s *TicketStore) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Ticket
	for _, id := range s.order {
		ticket := s.tickets[id]
		if !matches(ticket, filter) {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *TicketStore) CountActiveByTechnician(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, ticket := range s.tickets {
		if ticket.TechnicianID == nil || !ticket.Status.IsActive() {
			continue
		}
		counts[*ticket.TechnicianID]++
	}
	return counts, nil
}

func matches(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
		return false
	}
	if filter.CreatorName != nil && !strings.EqualFold(ticket.CreatorName, *filter.CreatorName) {
		return false
	}
	if filter.TechnicianID != nil && (ticket.TechnicianID == nil || *ticket.TechnicianID != *filter.TechnicianID) {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ticket.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneTicket(in *domain.Ticket) *domain.Ticket {
	out := *in
	if in.TechnicianID != nil {
		id := *in.TechnicianID
		out.TechnicianID = &id
	}
	if in.StartedAt != nil {
		t := *in.StartedAt
		out.StartedAt = &t
	}
	if in.EndedAt != nil {
		t := *in.EndedAt
		out.EndedAt = &t
	}
	if in.ServiceDuration != nil {
		d := *in.ServiceDuration
		out.ServiceDuration = &d
	}
	return &out
}
