package domain

import "time"

// Message is an append-only chat line in a ticket conversation.
type Message struct {
	ID         string
	TicketID   string
	SenderID   *string
	SenderName string
	SenderRole Role
	Body       string
	SentAt     time.Time
}

// FileAttachment records an uploaded file shared in a ticket conversation.
type FileAttachment struct {
	ID           string
	TicketID     string
	FileName     string
	URL          string
	UploaderID   *string
	UploaderName string
	UploaderRole Role
	Kind         EntryKind
	UploadedAt   time.Time
}
