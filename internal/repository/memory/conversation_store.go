package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
)

// MessageStore appends chat messages per ticket in insertion order.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]domain.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]domain.Message)}
}

func (s *MessageStore) Create(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], *msg)
	return nil
}

func (s *MessageStore) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[ticketID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// FileStore appends upload records per ticket in insertion order.
type FileStore struct {
	mu    sync.RWMutex
	files map[string][]domain.FileAttachment
}

func NewFileStore() *FileStore {
	return &FileStore{files: make(map[string][]domain.FileAttachment)}
}

func (s *FileStore) Create(_ context.Context, file *domain.FileAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	s.files[file.TicketID] = append(s.files[file.TicketID], *file)
	return nil
}

func (s *FileStore) ListByTicket(_ context.Context, ticketID string) ([]domain.FileAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.files[ticketID]
	out := make([]domain.FileAttachment, len(files))
	copy(out, files)
	return out, nil
}
