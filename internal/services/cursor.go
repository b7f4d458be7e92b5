package services

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

type cursorPayload struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

// EncodeMessageCursor returns an opaque token pointing at message.
func EncodeMessageCursor(message models.Message) string {
	encoded, err := json.Marshal(cursorPayload{CreatedAt: message.CreatedAt.UTC(), ID: message.ID})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(encoded)
}

// DecodeMessageCursor parses a token produced by EncodeMessageCursor. An empty
// token means "start from the newest message".
func DecodeMessageCursor(token string) (*models.MessageCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, validationError("malformed cursor")
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, validationError("malformed cursor")
	}
	if payload.ID == "" || payload.CreatedAt.IsZero() {
		return nil, validationError("malformed cursor")
	}

	return &models.MessageCursor{CreatedAt: payload.CreatedAt, ID: payload.ID}, nil
}
