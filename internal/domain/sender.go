package domain

import "strings"

// Role identifies which side of a conversation produced an entry.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleSystem     Role = "system"
)

// ParseRole accepts the canonical role names plus the labels older clients send.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "customer", "cliente", "client":
		return RoleCustomer, true
	case "technician", "tecnico", "técnico", "tech":
		return RoleTechnician, true
	case "system", "sistema":
		return RoleSystem, true
	default:
		return "", false
	}
}

// Sender is the explicit author of a message or upload.
type Sender struct {
	Role Role
	ID   string
	Name string
}

// CustomerSender builds a customer-authored sender.
func CustomerSender(id, name string) Sender {
	return Sender{Role: RoleCustomer, ID: id, Name: name}
}

// TechnicianSender builds a technician-authored sender.
func TechnicianSender(id, name string) Sender {
	return Sender{Role: RoleTechnician, ID: id, Name: name}
}

// SystemSender is used for notices the server posts into a room.
func SystemSender() Sender {
	return Sender{Role: RoleSystem, Name: "system"}
}
