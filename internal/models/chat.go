package models

import (
	"slices"
	"time"
)

const (
	AttachmentImage    = "image"
	AttachmentVideo    = "video"
	AttachmentAudio    = "audio"
	AttachmentDocument = "document"
)

// Conversation is a direct conversation between exactly two participants.
// Version grows by one on every mutation of the stored row.
type Conversation struct {
	ID               string            `json:"id"`
	Participants     []string          `json:"participants"`
	ParticipantNames map[string]string `json:"participant_names,omitempty"`
	LastMessage      string            `json:"last_message"`
	LastMessageAt    *time.Time        `json:"last_message_at,omitempty"`
	LastSenderID     string            `json:"last_sender_id,omitempty"`
	UnreadCount      map[string]int    `json:"unread_count"`
	Version          int64             `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	return c != nil && slices.Contains(c.Participants, userID)
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, participant := range c.Participants {
		if participant != userID {
			others = append(others, participant)
		}
	}
	return others
}

type Attachment struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
}

type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	SenderName     string              `json:"sender_name"`
	Content        string              `json:"content"`
	Attachments    []Attachment        `json:"attachments,omitempty"`
	Translations   map[string]string   `json:"translations,omitempty"`
	Reactions      map[string][]string `json:"reactions,omitempty"`
	ReadBy         map[string]bool     `json:"read_by"`
	CreatedAt      time.Time           `json:"created_at"`
}

func (m *Message) IsReadBy(userID string) bool {
	return m.ReadBy[userID]
}

// MessageCursor is a message position in (created_at, id) order. As a page
// cursor it points at the oldest message of the page; the next page holds
// messages strictly older than it.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

const (
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventMessageCreated      = "message.created"
	EventMessageUpdated      = "message.updated"
)

// ConversationEvent is a snapshot pushed to subscribers after a commit.
type ConversationEvent struct {
	Type           string        `json:"type"`
	ConversationID string        `json:"conversation_id"`
	Version        int64         `json:"version"`
	Participants   []string      `json:"participants"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	Message        *Message      `json:"message,omitempty"`
}
