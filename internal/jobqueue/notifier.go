package jobqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrTokenInvalid is returned by a Notifier when the push provider no longer
// accepts the token.
var ErrTokenInvalid = errors.New("push token is no longer valid")

type Notification struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type Notifier interface {
	Notify(ctx context.Context, token models.PushToken, notification Notification) error
}

// WebhookNotifier posts each notification to a push gateway.
type WebhookNotifier struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewWebhookNotifier(url, apiKey string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        strings.TrimSpace(url),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, token models.PushToken, notification Notification) error {
	body, err := json.Marshal(struct {
		Token        string       `json:"token"`
		Platform     string       `json:"platform"`
		Notification Notification `json:"notification"`
	}{
		Token:        token.Token,
		Platform:     token.Platform,
		Notification: notification,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrTokenInvalid
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send push: status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	return nil
}

// LogNotifier only logs. It is used when no push gateway is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, token models.PushToken, notification Notification) error {
	log.Info().
		Str("user_id", token.UserID).
		Str("platform", token.Platform).
		Str("conversation_id", notification.ConversationID).
		Msg("push notification (no gateway configured)")
	return nil
}
