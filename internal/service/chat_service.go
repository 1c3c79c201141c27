package service

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// Rooms is the slice of the realtime hub the chat flow drives.
type Rooms interface {
	Broadcaster
	ClosePrompts
	Join(sessionID, ticketID string) error
	BeginClose(ticketID string) bool
}

// UploadSink stores raw upload bytes and returns their public URL.
type UploadSink interface {
	Store(ctx context.Context, originalName string, r io.Reader) (url string, err error)
}

// DefaultUploadExtensions are the file types accepted in chat uploads.
var DefaultUploadExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".pdf", ".doc", ".docx", ".txt"}

const (
	closeRequestedNotice = "The technician asked to end this conversation. Waiting for confirmation."
	closeDeclinedNotice  = "The customer chose to continue the conversation."
)

// ChatService handles client operations arriving over a realtime connection.
type ChatService struct {
	tickets   *TicketService
	timeline  *TimelineService
	rooms     Rooms
	uploads   UploadSink
	allowed   map[string]struct{}
	maxUpload int64
	logger    *zap.Logger
	now       func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	Tickets           *TicketService
	Timeline          *TimelineService
	Rooms             Rooms
	Uploads           UploadSink
	AllowedExtensions []string
	MaxUploadBytes    int64
	Logger            *zap.Logger
	Now               func() time.Time
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if len(deps.AllowedExtensions) == 0 {
		deps.AllowedExtensions = DefaultUploadExtensions
	}
	allowed := make(map[string]struct{}, len(deps.AllowedExtensions))
	for _, ext := range deps.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &ChatService{
		tickets:   deps.Tickets,
		timeline:  deps.Timeline,
		rooms:     deps.Rooms,
		uploads:   deps.Uploads,
		allowed:   allowed,
		maxUpload: deps.MaxUploadBytes,
		logger:    deps.Logger,
		now:       deps.Now,
	}
}

// Join subscribes a session to a ticket room. Clients fetch history separately.
func (s *ChatService) Join(ctx context.Context, sessionID, ticketID string) error {
	if _, err := s.tickets.Get(ctx, ticketID); err != nil {
		return err
	}
	if err := s.rooms.Join(sessionID, ticketID); err != nil {
		return apperrors.NewNotFound("session", map[string]any{"session_id": sessionID})
	}
	return nil
}

// SendMessage persists a text message, then broadcasts it to the room.
func (s *ChatService) SendMessage(ctx context.Context, sender domain.Sender, ticketID, content string) (domain.TimelineEntry, error) {
	entry, err := s.timeline.AppendMessage(ctx, ticketID, sender, content)
	if err != nil {
		return domain.TimelineEntry{}, err
	}
	s.rooms.Broadcast(ctx, ticketID, events.ReceiveMessage, events.ReceiveMessageFrom(ticketID, entry))
	return entry, nil
}

// SendFileMessage records an already hosted file, then broadcasts it to the room.
func (s *ChatService) SendFileMessage(ctx context.Context, sender domain.Sender, ticketID, fileURL string) (domain.TimelineEntry, error) {
	entry, err := s.timeline.AppendFile(ctx, ticketID, sender, "", fileURL)
	if err != nil {
		return domain.TimelineEntry{}, err
	}
	s.rooms.Broadcast(ctx, ticketID, events.ReceiveMessage, events.ReceiveMessageFrom(ticketID, entry))
	return entry, nil
}

// UploadFile stores the bytes before anything is recorded or announced.
func (s *ChatService) UploadFile(ctx context.Context, sender domain.Sender, ticketID, fileName string, size int64, r io.Reader) (domain.TimelineEntry, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	ext := strings.ToLower(filepath.Ext(fileName))
	if _, ok := s.allowed[ext]; !ok || fileName == "." {
		return domain.TimelineEntry{}, apperrors.NewValidationError("file type not allowed", map[string]any{
			"file":    fileName,
			"allowed": s.allowedList(),
		})
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return domain.TimelineEntry{}, apperrors.NewPayloadTooLarge(s.maxUpload)
	}
	if _, err := s.tickets.Get(ctx, ticketID); err != nil {
		return domain.TimelineEntry{}, err
	}
	if s.uploads == nil {
		return domain.TimelineEntry{}, apperrors.NewInternalError(nil)
	}

	url, err := s.uploads.Store(ctx, fileName, r)
	if err != nil {
		return domain.TimelineEntry{}, apperrors.MapError(err)
	}
	entry, err := s.timeline.AppendFile(ctx, ticketID, sender, fileName, url)
	if err != nil {
		return domain.TimelineEntry{}, err
	}
	s.rooms.Broadcast(ctx, ticketID, events.ReceiveMessage, events.ReceiveMessageFrom(ticketID, entry))
	return entry, nil
}

// RequestClose asks the customer to confirm the end of service. Repeated
// requests while one is pending do not prompt again.
func (s *ChatService) RequestClose(ctx context.Context, sender domain.Sender, ticketID string) error {
	if sender.Role != domain.RoleTechnician {
		return apperrors.NewForbidden("only the technician can request closing")
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	switch {
	case ticket.Status == domain.TicketStatusClosed:
		return transitionError(ticket.Status)
	case ticket.StartedAt == nil:
		return apperrors.NewInvalidTransition(apperrors.ReasonNotStarted, string(ticket.Status))
	}
	if !s.rooms.BeginClose(ticketID) {
		return nil
	}
	s.systemNotice(ctx, ticketID, closeRequestedNotice)
	s.rooms.Broadcast(ctx, ticketID, events.CloseRequested, events.TicketRef{TicketID: ticketID})
	return nil
}

// ConfirmClose closes the ticket and clears any pending request.
func (s *ChatService) ConfirmClose(ctx context.Context, sender domain.Sender, ticketID string) (*domain.Ticket, error) {
	defer s.rooms.EndClose(ticketID)
	s.logger.Info("close confirmed",
		zap.String("ticket_id", ticketID),
		zap.String("by", sender.Name),
		zap.String("role", string(sender.Role)))
	return s.tickets.Close(ctx, ticketID)
}

// DeclineClose keeps the conversation going.
func (s *ChatService) DeclineClose(ctx context.Context, sender domain.Sender, ticketID string) error {
	if _, err := s.tickets.Get(ctx, ticketID); err != nil {
		return err
	}
	s.rooms.EndClose(ticketID)
	s.logger.Info("close declined", zap.String("ticket_id", ticketID), zap.String("by", sender.Name))
	s.systemNotice(ctx, ticketID, closeDeclinedNotice)
	return nil
}

// systemNotice is broadcast only; notices are not part of the stored conversation.
func (s *ChatService) systemNotice(ctx context.Context, ticketID, text string) {
	system := domain.SystemSender()
	s.rooms.Broadcast(ctx, ticketID, events.ReceiveMessage, events.ReceiveMessagePayload{
		TicketID:  ticketID,
		Sender:    system.Name,
		Content:   text,
		Role:      system.Role,
		Kind:      domain.EntryKindText,
		Timestamp: s.now().UTC(),
	})
}

func (s *ChatService) allowedList() []string {
	out := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
