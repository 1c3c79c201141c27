package memory

import "github.com/spec-kit/helpdesk-chat/internal/repository"

var (
	_ repository.TicketRepository        = (*TicketStore)(nil)
	_ repository.MessageRepository       = (*MessageStore)(nil)
	_ repository.FileRepository          = (*FileStore)(nil)
	_ repository.TechnicianRepository    = (*TechnicianStore)(nil)
	_ repository.CustomerRepository      = (*CustomerStore)(nil)
	_ repository.TicketHistoryRepository = (*HistoryStore)(nil)
)
