package services

import (
	"context"
	"strings"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/rs/zerolog/log"
)

type pushTokenWriter interface {
	Upsert(ctx context.Context, token models.PushToken) error
}

type PushTokenService struct {
	tokens pushTokenWriter
}

func NewPushTokenService(tokens pushTokenWriter) *PushTokenService {
	return &PushTokenService{tokens: tokens}
}

// Register stores the device token. Storage failures are logged and
// swallowed; only malformed input is reported.
func (s *PushTokenService) Register(ctx context.Context, userID, token, platform string) error {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if token == "" || len(token) > 4096 {
		return validationError("push token is required")
	}
	switch platform {
	case "web", "ios", "android":
	default:
		return validationError("unsupported platform %q", platform)
	}

	if err := s.tokens.Upsert(ctx, models.PushToken{UserID: userID, Token: token, Platform: platform}); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to register push token")
	}
	return nil
}
