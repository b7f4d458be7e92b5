package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/metrics"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	chatws "github.com/Gokhangurbuz92/sami-app-sub000/internal/websocket"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100
	maxEmojiRunes          = 8
)

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ChatUserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

type ConversationStore interface {
	CreateIfAbsent(ctx context.Context, conversation *models.Conversation) (*models.Conversation, bool, error)
	GetByID(ctx context.Context, conversationID string) (*models.Conversation, error)
	GetByIDForUpdate(ctx context.Context, conversationID string) (*models.Conversation, error)
	ListForParticipant(ctx context.Context, participantID string) ([]models.Conversation, error)
	ApplyMessage(ctx context.Context, conversationID, senderID, preview string, sentAt time.Time) (*models.Conversation, error)
	ResetUnread(ctx context.Context, conversationID, participantID string, newerThan *models.MessageCursor) (*models.Conversation, error)
	Touch(ctx context.Context, conversationID string) (*models.Conversation, error)
}

type MessageStore interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, messageID string) (*models.Message, error)
	GetByIDForUpdate(ctx context.Context, messageID string) (*models.Message, error)
	ListPage(ctx context.Context, conversationID string, before *models.MessageCursor, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, messageIDs []string, readerID string) (int64, error)
	SetReactions(ctx context.Context, messageID string, reactions map[string][]string) error
	SetTranslation(ctx context.Context, messageID, language, text string) error
}

type EventBroker interface {
	Publish(event models.ConversationEvent)
	Subscribe(userID, conversationID string) *chatws.Subscription
}

type PushEnqueuer interface {
	EnqueueMessagePush(ctx context.Context, message *models.Message, recipientIDs []string) error
}

type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

type RateLimiter interface {
	Allow(key string) bool
}

// ChatDependencies lists the collaborators of ChatService. Push, Translator,
// Storage and Limiter are optional.
type ChatDependencies struct {
	Tx            TxRunner
	Users         ChatUserStore
	Conversations ConversationStore
	Messages      MessageStore
	Events        EventBroker
	Push          PushEnqueuer
	Translator    Translator
	Storage       StorageService
	Limiter       RateLimiter
	Clock         func() time.Time
}

type ChatService struct {
	tx            TxRunner
	users         ChatUserStore
	conversations ConversationStore
	messages      MessageStore
	events        EventBroker
	push          PushEnqueuer
	translator    Translator
	storage       StorageService
	limiter       RateLimiter
	now           func() time.Time
	locks         *keyedMutex
}

func NewChatService(deps ChatDependencies) *ChatService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ChatService{
		tx:            deps.Tx,
		users:         deps.Users,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		events:        deps.Events,
		push:          deps.Push,
		translator:    deps.Translator,
		storage:       deps.Storage,
		limiter:       deps.Limiter,
		now:           clock,
		locks:         newKeyedMutex(),
	}
}

// ConversationKey is the identifier of the conversation between a and b. It
// does not depend on argument order.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func (s *ChatService) GetOrCreateConversation(
	ctx context.Context,
	userA string,
	userB string,
) (*models.Conversation, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, validationError("both participants are required")
	}
	if userA == userB {
		return nil, validationError("a conversation needs two distinct participants")
	}

	first, err := s.loadUser(ctx, userA)
	if err != nil {
		return nil, err
	}
	second, err := s.loadUser(ctx, userB)
	if err != nil {
		return nil, err
	}
	if !CanConverse(first, second) {
		return nil, ErrUnauthorized
	}

	names := map[string]string{first.ID: first.DisplayName, second.ID: second.DisplayName}
	conversationID := ConversationKey(first.ID, second.ID)

	existing, err := s.conversations.GetByID(ctx, conversationID)
	if err == nil {
		existing.ParticipantNames = names
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, s.storageFailure("load conversation", err)
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	participants := []string{first.ID, second.ID}
	slices.Sort(participants)
	stored, created, err := s.conversations.CreateIfAbsent(ctx, &models.Conversation{
		ID:           conversationID,
		Participants: participants,
		UnreadCount:  map[string]int{first.ID: 0, second.ID: 0},
		Version:      1,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		return nil, s.storageFailure("create conversation", err)
	}

	stored.ParticipantNames = names
	if created {
		metrics.ConversationsCreated.Inc()
		s.publish(models.EventConversationCreated, stored, nil)
	}
	return stored, nil
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	conversationID string,
	senderID string,
	content string,
	attachments []models.Attachment,
) (*models.Message, error) {
	cleanedAttachments, err := normalizeAttachments(attachments)
	if err != nil {
		return nil, err
	}
	cleaned, err := sanitizeMessageContent(content, len(cleanedAttachments) > 0)
	if err != nil {
		return nil, err
	}

	conversation, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}
	if s.limiter != nil && !s.limiter.Allow(senderID) {
		return nil, ErrRateLimited
	}

	sender, err := s.loadUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conversation.ID)
	defer unlock()

	sentAt := s.now().UTC().Truncate(time.Microsecond)
	readBy := make(map[string]bool, len(conversation.Participants))
	for _, participant := range conversation.Participants {
		readBy[participant] = participant == senderID
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       senderID,
		SenderName:     sender.DisplayName,
		Content:        cleaned,
		Attachments:    cleanedAttachments,
		ReadBy:         readBy,
		CreatedAt:      sentAt,
	}

	preview := cleaned
	if preview == "" {
		preview = attachmentPreview(cleanedAttachments)
	}

	var updated *models.Conversation
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, message); err != nil {
			return err
		}
		var err error
		updated, err = s.conversations.ApplyMessage(ctx, conversation.ID, senderID, preview, sentAt)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, s.storageFailure("send message", err)
	}

	metrics.MessagesSent.Inc()
	s.publish(models.EventMessageCreated, updated, message)

	if s.push != nil {
		recipients := updated.OtherParticipants(senderID)
		if err := s.push.EnqueueMessagePush(ctx, message, recipients); err != nil {
			log.Warn().Err(err).
				Str("conversation_id", conversation.ID).
				Str("message_id", message.ID).
				Msg("failed to queue push notification")
		}
	}

	return message, nil
}

// GetMessagesForConversation returns one page of messages in chronological
// order and marks the fetched ones read for the requester.
func (s *ChatService) GetMessagesForConversation(
	ctx context.Context,
	conversationID string,
	requesterID string,
	cursor string,
	pageSize int,
) (*models.MessagePage, error) {
	if pageSize <= 0 {
		pageSize = DefaultMessagePageSize
	}
	if pageSize > MaxMessagePageSize {
		pageSize = MaxMessagePageSize
	}
	before, err := DecodeMessageCursor(cursor)
	if err != nil {
		return nil, err
	}

	conversation, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(requesterID) {
		return nil, ErrNotParticipant
	}

	unlock := s.locks.Lock(conversation.ID)
	defer unlock()

	var (
		messages []models.Message
		hasMore  bool
		updated  *models.Conversation
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// The row lock holds off sends from other instances until the
		// reset below is committed.
		current, err := s.conversations.GetByIDForUpdate(ctx, conversation.ID)
		if err != nil {
			return err
		}

		rows, err := s.messages.ListPage(ctx, conversation.ID, before, pageSize+1)
		if err != nil {
			return err
		}
		if len(rows) > pageSize {
			hasMore = true
			rows = rows[:pageSize]
		}

		unread := make([]string, 0, len(rows))
		for i := range rows {
			if rows[i].SenderID == requesterID {
				continue
			}
			if !rows[i].IsReadBy(requesterID) {
				unread = append(unread, rows[i].ID)
			}
			rows[i].ReadBy[requesterID] = true
		}

		marked, err := s.messages.MarkRead(ctx, unread, requesterID)
		if err != nil {
			return err
		}

		// Messages newer than the page were never shown, so they stay counted.
		newest := before
		if len(rows) > 0 {
			newest = &models.MessageCursor{CreatedAt: rows[0].CreatedAt, ID: rows[0].ID}
		}
		if marked > 0 || current.UnreadCount[requesterID] != 0 {
			updated, err = s.conversations.ResetUnread(ctx, conversation.ID, requesterID, newest)
			if err != nil {
				return err
			}
		}

		messages = rows
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, s.storageFailure("read messages", err)
	}

	if updated != nil {
		s.publish(models.EventConversationUpdated, updated, nil)
	}

	page := &models.MessagePage{
		Messages: make([]models.Message, 0, len(messages)),
		HasMore:  hasMore,
	}
	for i := len(messages) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, messages[i])
	}
	if hasMore && len(messages) > 0 {
		page.NextCursor = EncodeMessageCursor(messages[len(messages)-1])
	}
	return page, nil
}

func (s *ChatService) GetConversationsForUser(
	ctx context.Context,
	userID string,
) ([]models.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}

	conversations, err := s.conversations.ListForParticipant(ctx, userID)
	if err != nil {
		return nil, s.storageFailure("list conversations", err)
	}
	if len(conversations) == 0 {
		return conversations, nil
	}

	ids := make([]string, 0, len(conversations)*2)
	for _, conversation := range conversations {
		for _, participant := range conversation.Participants {
			if !slices.Contains(ids, participant) {
				ids = append(ids, participant)
			}
		}
	}

	names, err := s.users.GetDisplayNames(ctx, ids)
	if err != nil {
		return nil, s.storageFailure("resolve participant names", err)
	}

	for i := range conversations {
		resolved := make(map[string]string, len(conversations[i].Participants))
		for _, participant := range conversations[i].Participants {
			resolved[participant] = names[participant]
		}
		conversations[i].ParticipantNames = resolved
	}
	return conversations, nil
}

func (s *ChatService) GetTotalUnreadCount(ctx context.Context, userID string) (int, error) {
	conversations, err := s.conversations.ListForParticipant(ctx, userID)
	if err != nil {
		return 0, s.storageFailure("list conversations", err)
	}

	total := 0
	for _, conversation := range conversations {
		total += conversation.UnreadCount[userID]
	}
	return total, nil
}

// ToggleReaction adds emoji to the user's reactions on the message, or
// removes it when already present.
func (s *ChatService) ToggleReaction(
	ctx context.Context,
	messageID string,
	userID string,
	emoji string,
) (*models.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if count := utf8.RuneCountInString(emoji); count == 0 || count > maxEmojiRunes {
		return nil, validationError("emoji must be 1 to %d characters", maxEmojiRunes)
	}

	message, conversation, err := s.loadMessageForParticipant(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conversation.ID)
	defer unlock()

	var (
		updatedMessage      *models.Message
		updatedConversation *models.Conversation
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.messages.GetByIDForUpdate(ctx, message.ID)
		if err != nil {
			return err
		}

		reactions := make(map[string][]string, len(locked.Reactions)+1)
		for user, emojis := range locked.Reactions {
			reactions[user] = slices.Clone(emojis)
		}
		current := reactions[userID]
		if index := slices.Index(current, emoji); index >= 0 {
			current = slices.Delete(current, index, index+1)
		} else {
			current = append(current, emoji)
		}
		if len(current) == 0 {
			delete(reactions, userID)
		} else {
			reactions[userID] = current
		}

		if err := s.messages.SetReactions(ctx, locked.ID, reactions); err != nil {
			return err
		}
		updatedConversation, err = s.conversations.Touch(ctx, conversation.ID)
		if err != nil {
			return err
		}

		locked.Reactions = reactions
		if len(reactions) == 0 {
			locked.Reactions = nil
		}
		updatedMessage = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, s.storageFailure("toggle reaction", err)
	}

	s.publish(models.EventMessageUpdated, updatedConversation, updatedMessage)
	return updatedMessage, nil
}

// TranslateMessage returns the message text in the base language of
// targetLanguage, calling the translator only on a cache miss.
func (s *ChatService) TranslateMessage(
	ctx context.Context,
	messageID string,
	requesterID string,
	targetLanguage string,
) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(targetLanguage))
	if err != nil {
		return "", validationError("unknown language %q", targetLanguage)
	}
	base, _ := tag.Base()
	code := base.String()

	message, _, err := s.loadMessageForParticipant(ctx, messageID, requesterID)
	if err != nil {
		return "", err
	}
	if cached, ok := message.Translations[code]; ok {
		return cached, nil
	}
	if message.Content == "" {
		return "", validationError("message has no text to translate")
	}
	if s.translator == nil {
		return "", ErrTranslationUnavailable
	}

	translated, err := s.translator.Translate(ctx, message.Content, code)
	if err != nil {
		log.Warn().Err(err).Str("message_id", message.ID).Str("language", code).Msg("translation failed")
		return "", fmt.Errorf("%w: %w", ErrTranslationUnavailable, err)
	}

	if err := s.messages.SetTranslation(ctx, message.ID, code, translated); err != nil {
		log.Warn().Err(err).Str("message_id", message.ID).Str("language", code).Msg("failed to cache translation")
	}
	return translated, nil
}

// UploadAttachment stores a file and returns the descriptor to send along
// with a message.
func (s *ChatService) UploadAttachment(
	ctx context.Context,
	userID string,
	file multipart.File,
	filename string,
	size int64,
) (*models.Attachment, error) {
	if s.storage == nil {
		return nil, ErrObjectStorageNotConfigured
	}
	if file == nil {
		return nil, validationError("file is required")
	}
	if size <= 0 || size > MaxAttachmentBytes {
		return nil, validationError("attachment size must be between 1 and %d bytes", MaxAttachmentBytes)
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind attachment: %w", err)
	}

	kind, mimeType, ok := classifyUpload(http.DetectContentType(head[:n]), filename)
	if !ok {
		return nil, validationError("unsupported attachment type")
	}

	name := SanitizeText(filepath.Base(filename))
	if name == "" || name == "." {
		name = "attachment"
	}
	objectName := uuid.NewString() + strings.ToLower(filepath.Ext(filename))

	fileURL, err := s.storage.UploadFile(ctx, file, objectName, "attachments/"+userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("attachment upload failed")
		return nil, err
	}

	return &models.Attachment{
		URL:      fileURL,
		Type:     kind,
		Name:     name,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

// Subscribe opens a real-time feed for userID. With an empty conversationID
// every conversation of the user is followed.
func (s *ChatService) Subscribe(
	ctx context.Context,
	userID string,
	conversationID string,
) (*chatws.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	if conversationID != "" {
		conversation, err := s.loadConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if !conversation.HasParticipant(userID) {
			return nil, ErrNotParticipant
		}
	}
	return s.events.Subscribe(userID, conversationID), nil
}

func (s *ChatService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, s.storageFailure("load user", err)
	}
	return user, nil
}

func (s *ChatService) loadConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrConversationNotFound
	}
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, s.storageFailure("load conversation", err)
	}
	return conversation, nil
}

func (s *ChatService) loadMessageForParticipant(
	ctx context.Context,
	messageID string,
	userID string,
) (*models.Message, *models.Conversation, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrMessageNotFound
		}
		return nil, nil, s.storageFailure("load message", err)
	}

	conversation, err := s.loadConversation(ctx, message.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, nil, ErrNotParticipant
	}
	return message, conversation, nil
}

func (s *ChatService) publish(eventType string, conversation *models.Conversation, message *models.Message) {
	if s.events == nil || conversation == nil {
		return
	}
	s.events.Publish(models.ConversationEvent{
		Type:           eventType,
		ConversationID: conversation.ID,
		Version:        conversation.Version,
		Participants:   slices.Clone(conversation.Participants),
		Conversation:   conversation,
		Message:        message,
	})
}

func (s *ChatService) storageFailure(operation string, err error) error {
	log.Error().Err(err).Str("operation", operation).Msg("chat storage call failed")
	return storageError(err)
}
