package domain

import (
	"path"
	"strings"
	"time"
)

// EntryKind classifies how a timeline entry should be rendered.
type EntryKind string

const (
	EntryKindText  EntryKind = "text"
	EntryKindImage EntryKind = "image"
	EntryKindFile  EntryKind = "file"
)

// FileMarker prefixes content that originates from an upload record.
const FileMarker = "file:"

// UploadPathMarker identifies links that point into the upload area.
const UploadPathMarker = "/uploads/"

var (
	messageImageExts = []string{".jpg", ".jpeg", ".png", ".gif"}
	fileImageExts    = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)

// TimelineEntry is one item of the merged conversation.
type TimelineEntry struct {
	ID           string    `json:"id"`
	Sender       string    `json:"sender"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Kind         EntryKind `json:"kind"`
	OriginalName string    `json:"originalName,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ClassifyMessageContent decides the kind of a text message body.
func ClassifyMessageContent(content string) EntryKind {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, ext := range messageImageExts {
		if strings.HasSuffix(lower, ext) {
			return EntryKindImage
		}
	}
	if strings.Contains(lower, UploadPathMarker) {
		return EntryKindFile
	}
	return EntryKindText
}

// ClassifyFileName decides the kind of an uploaded file from its extension.
func ClassifyFileName(name string) EntryKind {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(name)))
	for _, candidate := range fileImageExts {
		if ext == candidate {
			return EntryKindImage
		}
	}
	return EntryKindFile
}
