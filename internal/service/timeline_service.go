package service

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/events"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// TimelineService merges a ticket's messages and uploads into one conversation.
type TimelineService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	files      repository.FileRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TimelineDependencies bundles repositories for the timeline service.
type TimelineDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	FileRepo    repository.FileRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewTimelineService constructs the service.
func NewTimelineService(deps TimelineDependencies) *TimelineService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TimelineService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		files:      deps.FileRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}
}

// Merge rebuilds the ordered conversation from storage on every call.
func (s *TimelineService) Merge(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	return s.mergeFor(ctx, ticket)
}

func (s *TimelineService) mergeFor(ctx context.Context, ticket *domain.Ticket) ([]domain.TimelineEntry, error) {
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	files, err := s.files.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	entries := make([]domain.TimelineEntry, 0, len(msgs)+len(files))
	for _, m := range msgs {
		entries = append(entries, messageEntry(m, ticket.CreatorName))
	}
	for _, f := range files {
		entries = append(entries, fileEntry(f, ticket.CreatorName))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// AppendMessage persists a chat line and returns it as a timeline entry.
func (s *TimelineService) AppendMessage(ctx context.Context, ticketID string, sender domain.Sender, content string) (domain.TimelineEntry, error) {
	content = strings.TrimSpace(content)
	problems := validateSender(sender)
	if content == "" {
		problems["content"] = "must not be blank"
	}
	if len(problems) > 0 {
		return domain.TimelineEntry{}, apperrors.NewValidationError("invalid message", problems)
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return domain.TimelineEntry{}, err
	}

	msg := &domain.Message{
		TicketID:   ticket.ID,
		SenderID:   optionalID(sender.ID),
		SenderName: sender.Name,
		SenderRole: sender.Role,
		Body:       content,
		SentAt:     s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return domain.TimelineEntry{}, apperrors.MapError(err)
	}

	entry := messageEntry(*msg, ticket.CreatorName)
	s.publishAdded(ctx, ticket.ID, sender, entry)
	return entry, nil
}

// AppendFile records an uploaded file. The image/file decision is stored with it.
func (s *TimelineService) AppendFile(ctx context.Context, ticketID string, sender domain.Sender, fileName, url string) (domain.TimelineEntry, error) {
	url = strings.TrimSpace(url)
	fileName = strings.TrimSpace(fileName)
	if fileName == "" && url != "" {
		fileName = path.Base(url)
	}
	problems := validateSender(sender)
	if url == "" {
		problems["url"] = "must not be blank"
	}
	if len(problems) > 0 {
		return domain.TimelineEntry{}, apperrors.NewValidationError("invalid file", problems)
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return domain.TimelineEntry{}, err
	}

	file := &domain.FileAttachment{
		TicketID:     ticket.ID,
		FileName:     fileName,
		URL:          url,
		UploaderID:   optionalID(sender.ID),
		UploaderName: sender.Name,
		UploaderRole: sender.Role,
		Kind:         domain.ClassifyFileName(fileName),
		UploadedAt:   s.now().UTC(),
	}
	if err := s.files.Create(ctx, file); err != nil {
		return domain.TimelineEntry{}, apperrors.MapError(err)
	}

	entry := fileEntry(*file, ticket.CreatorName)
	s.publishAdded(ctx, ticket.ID, sender, entry)
	return entry, nil
}

func (s *TimelineService) publishAdded(ctx context.Context, ticketID string, sender domain.Sender, entry domain.TimelineEntry) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(sender),
		Timestamp: entry.Timestamp,
		Payload: events.TicketMessageAddedPayload{
			EntryID:     entry.ID,
			Kind:        entry.Kind,
			BodyPreview: stringPreview(entry.Content, 120),
		},
	})
}

func messageEntry(m domain.Message, customerName string) domain.TimelineEntry {
	return domain.TimelineEntry{
		ID:        m.ID,
		Sender:    m.SenderName,
		Role:      resolveRole(m.SenderRole, m.SenderName, customerName),
		Content:   m.Body,
		Kind:      domain.ClassifyMessageContent(m.Body),
		Timestamp: m.SentAt,
	}
}

func fileEntry(f domain.FileAttachment, customerName string) domain.TimelineEntry {
	kind := f.Kind
	if kind == "" {
		kind = domain.ClassifyFileName(f.FileName)
	}
	return domain.TimelineEntry{
		ID:           f.ID,
		Sender:       f.UploaderName,
		Role:         resolveRole(f.UploaderRole, f.UploaderName, customerName),
		Content:      domain.FileMarker + f.URL,
		Kind:         kind,
		OriginalName: f.FileName,
		Timestamp:    f.UploadedAt,
	}
}

// resolveRole prefers the stored role. Rows written without one fall back to
// comparing the sender with the ticket's customer name.
func resolveRole(stored domain.Role, senderName, customerName string) domain.Role {
	if stored != "" {
		return stored
	}
	if strings.EqualFold(strings.TrimSpace(senderName), strings.TrimSpace(customerName)) {
		return domain.RoleCustomer
	}
	return domain.RoleTechnician
}

func validateSender(sender domain.Sender) map[string]any {
	problems := map[string]any{}
	if strings.TrimSpace(sender.Name) == "" {
		problems["sender"] = "must not be blank"
	}
	switch sender.Role {
	case domain.RoleCustomer, domain.RoleTechnician, domain.RoleSystem:
	default:
		problems["role"] = "must be customer or technician"
	}
	return problems
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperrors.NewValidationError("ticket id is required", map[string]any{"ticket_id": "must not be blank"})
	}
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
