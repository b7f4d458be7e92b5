package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/metrics"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog/log"
)

const previewRunes = 120

// PushNotificationArgs is one push for one recipient of a message.
type PushNotificationArgs struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderName     string `json:"sender_name"`
	Preview        string `json:"preview"`
}

func (PushNotificationArgs) Kind() string {
	return "push_notification"
}

type pushTokenStore interface {
	ListByUserID(ctx context.Context, userID string) ([]models.PushToken, error)
	Delete(ctx context.Context, token string) error
}

type PushNotificationWorker struct {
	river.WorkerDefaults[PushNotificationArgs]
	tokens   pushTokenStore
	notifier Notifier
}

func NewPushNotificationWorker(tokens pushTokenStore, notifier Notifier) *PushNotificationWorker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &PushNotificationWorker{tokens: tokens, notifier: notifier}
}

// Work delivers to every token of the recipient. Tokens rejected by the
// gateway are removed; other failures make River retry the job.
func (w *PushNotificationWorker) Work(ctx context.Context, job *river.Job[PushNotificationArgs]) error {
	args := job.Args

	tokens, err := w.tokens.ListByUserID(ctx, args.RecipientID)
	if err != nil {
		return fmt.Errorf("list push tokens: %w", err)
	}
	if len(tokens) == 0 {
		metrics.PushDeliveries.WithLabelValues("no_token").Inc()
		return nil
	}

	notification := Notification{
		Title:          args.SenderName,
		Body:           args.Preview,
		ConversationID: args.ConversationID,
		MessageID:      args.MessageID,
	}

	var failures []error
	for _, token := range tokens {
		err := w.notifier.Notify(ctx, token, notification)
		switch {
		case err == nil:
			metrics.PushDeliveries.WithLabelValues("sent").Inc()
		case errors.Is(err, ErrTokenInvalid):
			metrics.PushDeliveries.WithLabelValues("invalid_token").Inc()
			if deleteErr := w.tokens.Delete(ctx, token.Token); deleteErr != nil {
				log.Warn().Err(deleteErr).Str("user_id", token.UserID).Msg("failed to delete invalid push token")
			}
		default:
			metrics.PushDeliveries.WithLabelValues("failed").Inc()
			failures = append(failures, err)
		}
	}

	return errors.Join(failures...)
}

func pushArgsFor(message *models.Message, recipientID string) PushNotificationArgs {
	preview := message.Content
	if utf8.RuneCountInString(preview) > previewRunes {
		preview = string([]rune(preview)[:previewRunes]) + "…"
	}
	if preview == "" && len(message.Attachments) > 0 {
		preview = "[" + message.Attachments[0].Type + "]"
	}
	return PushNotificationArgs{
		RecipientID:    recipientID,
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		SenderName:     message.SenderName,
		Preview:        preview,
	}
}
