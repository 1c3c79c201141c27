package persistence

import (
	"github.com/spec-kit/helpdesk-chat/internal/repository"
	"github.com/spec-kit/helpdesk-chat/internal/repository/memory"
)

// Stores bundles every repository the services depend on.
type Stores struct {
	Tickets     repository.TicketRepository
	Messages    repository.MessageRepository
	Files       repository.FileRepository
	Technicians repository.TechnicianRepository
	Customers   repository.CustomerRepository
	History     repository.TicketHistoryRepository
}

// NewStores returns pgx-backed repositories, or in-memory ones when no pool is open.
func NewStores(pg *Postgres) Stores {
	if pg == nil || pg.Pool == nil {
		return Stores{
			Tickets:     memory.NewTicketStore(),
			Messages:    memory.NewMessageStore(),
			Files:       memory.NewFileStore(),
			Technicians: memory.NewTechnicianStore(),
			Customers:   memory.NewCustomerStore(),
			History:     memory.NewHistoryStore(),
		}
	}
	return Stores{
		Tickets:     repository.NewTicketRepository(pg.Pool),
		Messages:    repository.NewMessageRepository(pg.Pool),
		Files:       repository.NewFileRepository(pg.Pool),
		Technicians: repository.NewTechnicianRepository(pg.Pool),
		Customers:   repository.NewCustomerRepository(pg.Pool),
		History:     repository.NewTicketHistoryRepository(pg.Pool),
	}
}
