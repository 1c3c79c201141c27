package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/repository"
)

// TechnicianStore is an in-memory technician directory preserving registration order.
type TechnicianStore struct {
	mu          sync.RWMutex
	technicians []domain.Technician
}

func NewTechnicianStore(seed ...domain.Technician) *TechnicianStore {
	s := &TechnicianStore{}
	for i := range seed {
		_ = s.Create(context.Background(), &seed[i])
	}
	return s
}

func (s *TechnicianStore) Create(_ context.Context, technician *domain.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if technician.ID == "" {
		technician.ID = uuid.NewString()
	}
	s.technicians = append(s.technicians, *technician)
	return nil
}

func (s *TechnicianStore) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	return s.find(func(t domain.Technician) bool { return t.ID == id })
}

func (s *TechnicianStore) GetByName(_ context.Context, name string) (*domain.Technician, error) {
	return s.find(func(t domain.Technician) bool { return strings.EqualFold(t.Name, name) })
}

func (s *TechnicianStore) GetByEmail(_ context.Context, email string) (*domain.Technician, error) {
	return s.find(func(t domain.Technician) bool { return strings.EqualFold(t.Email, email) })
}

func (s *TechnicianStore) List(_ context.Context) ([]domain.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Technician, len(s.technicians))
	copy(out, s.technicians)
	return out, nil
}

func (s *TechnicianStore) find(match func(domain.Technician) bool) (*domain.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, technician := range s.technicians {
		if match(technician) {
			found := technician
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CustomerStore keeps customer accounts in memory.
type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[string]domain.Customer)}
}

func (s *CustomerStore) Create(_ context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	s.customers[customer.ID] = *customer
	return nil
}

func (s *CustomerStore) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &customer, nil
}

func (s *CustomerStore) GetByUsername(_ context.Context, username string) (*domain.Customer, error) {
	return s.find(func(c domain.Customer) bool { return strings.EqualFold(c.Username, username) })
}

func (s *CustomerStore) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	return s.find(func(c domain.Customer) bool { return strings.EqualFold(c.Email, email) })
}

func (s *CustomerStore) find(match func(domain.Customer) bool) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if match(customer) {
			found := customer
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}
