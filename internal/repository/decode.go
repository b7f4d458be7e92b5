package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

// ErrMalformedDocument is returned when a stored row does not match the shape
// the application expects.
var ErrMalformedDocument = errors.New("malformed document")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDocument, fmt.Sprintf(format, args...))
}

func parseConversation(conversation *models.Conversation, rawUnread []byte) error {
	if len(conversation.Participants) != 2 {
		return malformed("conversation %s has %d participants", conversation.ID, len(conversation.Participants))
	}
	if conversation.Participants[0] == "" || conversation.Participants[0] == conversation.Participants[1] {
		return malformed("conversation %s has invalid participants", conversation.ID)
	}

	unread := make(map[string]int)
	if len(rawUnread) > 0 {
		if err := json.Unmarshal(rawUnread, &unread); err != nil {
			return malformed("conversation %s unread_count: %v", conversation.ID, err)
		}
	}
	for key, count := range unread {
		if !conversation.HasParticipant(key) {
			return malformed("conversation %s unread_count has non-participant %q", conversation.ID, key)
		}
		if count < 0 {
			return malformed("conversation %s unread_count for %q is negative", conversation.ID, key)
		}
	}
	for _, participant := range conversation.Participants {
		if _, ok := unread[participant]; !ok {
			unread[participant] = 0
		}
	}
	conversation.UnreadCount = unread
	return nil
}

type messageDocument struct {
	attachments  []byte
	translations []byte
	reactions    []byte
	readBy       []byte
}

func parseMessage(message *models.Message, doc messageDocument) error {
	if message.ConversationID == "" || message.SenderID == "" {
		return malformed("message %s is missing ownership fields", message.ID)
	}

	if len(doc.attachments) > 0 {
		var attachments []models.Attachment
		if err := json.Unmarshal(doc.attachments, &attachments); err != nil {
			return malformed("message %s attachments: %v", message.ID, err)
		}
		for _, attachment := range attachments {
			if attachment.URL == "" || attachment.Type == "" {
				return malformed("message %s has an attachment without url or type", message.ID)
			}
		}
		if len(attachments) > 0 {
			message.Attachments = attachments
		}
	}

	translations := map[string]string{}
	if len(doc.translations) > 0 {
		if err := json.Unmarshal(doc.translations, &translations); err != nil {
			return malformed("message %s translations: %v", message.ID, err)
		}
	}
	if len(translations) > 0 {
		message.Translations = translations
	}

	reactions := map[string][]string{}
	if len(doc.reactions) > 0 {
		if err := json.Unmarshal(doc.reactions, &reactions); err != nil {
			return malformed("message %s reactions: %v", message.ID, err)
		}
	}
	if len(reactions) > 0 {
		message.Reactions = reactions
	}

	readBy := map[string]bool{}
	if len(doc.readBy) > 0 {
		if err := json.Unmarshal(doc.readBy, &readBy); err != nil {
			return malformed("message %s read_by: %v", message.ID, err)
		}
	}
	message.ReadBy = readBy
	return nil
}

func encodeJSON(value any) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode document field: %w", err)
	}
	return encoded, nil
}
