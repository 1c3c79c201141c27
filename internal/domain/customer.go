package domain

import "time"

// Customer opens tickets. Username doubles as the chat display name.
type Customer struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
