package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// HistoryStore keeps audit entries per ticket in insertion order.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.TicketHistory
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[string][]domain.TicketHistory)}
}

func (s *HistoryStore) Create(_ context.Context, history *domain.TicketHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	s.entries[history.TicketID] = append(s.entries[history.TicketID], *history)
	return nil
}

func (s *HistoryStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[ticketID]
	out := make([]domain.TicketHistory, len(entries))
	copy(out, entries)
	return out, nil
}
