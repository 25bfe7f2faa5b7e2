package domain

import "time"

// Role of a chat message author.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleSystem      Role = "system"
)

// ChatMessage is append-only: never edited or reordered after creation.
// Seq is a per-room monotonic logical timestamp assigned by the store.
type ChatMessage struct {
	Role   Role      `json:"role"`
	Author Identity  `json:"author,omitempty"` // empty for system notices
	Parts  []string  `json:"parts"`
	Seq    int64     `json:"seq"`
	SentAt time.Time `json:"sent_at"`
}

func NewChatMessage(author Identity, parts ...string) ChatMessage {
	return ChatMessage{Role: RoleParticipant, Author: author, Parts: parts, SentAt: time.Now()}
}

func NewSystemNotice(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Parts: []string{text}, SentAt: time.Now()}
}

// SharedNote is the single mutable text blob per room, last write wins.
type SharedNote struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resource is a shelf entry keyed by file name within its room.
type Resource struct {
	FileName  string    `json:"file_name"`
	Location  string    `json:"location"`
	Uploader  string    `json:"uploader"`
	CreatedAt time.Time `json:"created_at"`
}
