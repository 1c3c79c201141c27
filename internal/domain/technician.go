package domain

import "time"

// Technician is a support agent that can be assigned tickets.
type Technician struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Specialty    string
	CreatedAt    time.Time
}
