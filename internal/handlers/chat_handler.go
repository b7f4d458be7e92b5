package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/middleware"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	chatws "github.com/Gokhangurbuz92/sami-app-sub000/internal/websocket"
	"github.com/Gokhangurbuz92/sami-app-sub000/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type chatApplicationService interface {
	GetOrCreateConversation(ctx context.Context, userA string, userB string) (*models.Conversation, error)
	GetConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	GetTotalUnreadCount(ctx context.Context, userID string) (int, error)
	GetMessagesForConversation(ctx context.Context, conversationID string, requesterID string, cursor string, pageSize int) (*models.MessagePage, error)
	SendMessage(ctx context.Context, conversationID string, senderID string, content string, attachments []models.Attachment) (*models.Message, error)
	ToggleReaction(ctx context.Context, messageID string, userID string, emoji string) (*models.Message, error)
	TranslateMessage(ctx context.Context, messageID string, requesterID string, targetLanguage string) (string, error)
	UploadAttachment(ctx context.Context, userID string, file multipart.File, filename string, size int64) (*models.Attachment, error)
	Subscribe(ctx context.Context, userID string, conversationID string) (*chatws.Subscription, error)
}

type ChatHandler struct {
	service   chatApplicationService
	jwtSecret string
}

type createConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

type sendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

type translateRequest struct {
	Language string `json:"language"`
}

func NewChatHandler(service chatApplicationService, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	conversations, err := h.service.GetConversationsForUser(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.ParticipantID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "participant_id is required"})
	}

	conversation, err := h.service.GetOrCreateConversation(c.Context(), userID, req.ParticipantID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	total, err := h.service.GetTotalUnreadCount(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"unread_count": total})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	limit := min(parsePositiveInt(c.Query("limit"), services.DefaultMessagePageSize), services.MaxMessagePageSize)
	page, err := h.service.GetMessagesForConversation(
		c.Context(),
		c.Params("id"),
		userID,
		strings.TrimSpace(c.Query("cursor")),
		limit,
	)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(page)
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), c.Params("id"), userID, req.Content, req.Attachments)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) ToggleReaction(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req reactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.ToggleReaction(c.Context(), c.Params("id"), userID, req.Emoji)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) TranslateMessage(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	var req translateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	translated, err := h.service.TranslateMessage(c.Context(), c.Params("id"), userID, req.Language)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"language": req.Language, "text": translated})
}

func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to open file"})
	}
	defer file.Close()

	attachment, err := h.service.UploadAttachment(c.Context(), userID, file, fileHeader.Filename, fileHeader.Size)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"attachment": attachment})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals(middleware.LocalUserID, claims.UserID)
	c.Locals(middleware.LocalRole, claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	conversationID := strings.TrimSpace(conn.Query("conversation_id"))

	sub, err := h.service.Subscribe(context.Background(), userID, conversationID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("websocket subscription refused")
		payload, _ := json.Marshal(chatws.Frame{
			Type:      "error",
			Content:   describeChatError(err),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		_ = conn.Close()
		return
	}

	chatws.NewClient(conn, sub).Serve(h.service, describeChatError)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		scheme, token, found := strings.Cut(strings.TrimSpace(c.Get(fiber.HeaderAuthorization)), " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			tokenString = strings.TrimSpace(token)
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

type chatErrorResponse struct {
	status  int
	message string
}

func classifyChatError(err error) chatErrorResponse {
	switch {
	case errors.Is(err, services.ErrValidationFailed):
		return chatErrorResponse{fiber.StatusBadRequest, validationMessage(err)}
	case errors.Is(err, services.ErrUnauthorized):
		return chatErrorResponse{fiber.StatusForbidden, "Users are not allowed to converse"}
	case errors.Is(err, services.ErrNotParticipant):
		return chatErrorResponse{fiber.StatusForbidden, "Not a participant of this conversation"}
	case errors.Is(err, services.ErrConversationNotFound):
		return chatErrorResponse{fiber.StatusNotFound, "Conversation not found"}
	case errors.Is(err, services.ErrMessageNotFound):
		return chatErrorResponse{fiber.StatusNotFound, "Message not found"}
	case errors.Is(err, services.ErrUserNotFound):
		return chatErrorResponse{fiber.StatusNotFound, "User not found"}
	case errors.Is(err, services.ErrRateLimited):
		return chatErrorResponse{fiber.StatusTooManyRequests, "Too many messages"}
	case errors.Is(err, services.ErrTranslationUnavailable):
		return chatErrorResponse{fiber.StatusServiceUnavailable, "Translation unavailable"}
	case errors.Is(err, services.ErrObjectStorageNotConfigured):
		return chatErrorResponse{fiber.StatusServiceUnavailable, "Object storage not configured"}
	case errors.Is(err, services.ErrStorageUnavailable):
		return chatErrorResponse{fiber.StatusServiceUnavailable, "Storage unavailable"}
	default:
		return chatErrorResponse{fiber.StatusInternalServerError, "Failed to process chat request"}
	}
}

func mapChatError(c *fiber.Ctx, err error) error {
	resp := classifyChatError(err)
	if resp.status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("chat request failed")
	}
	return c.Status(resp.status).JSON(fiber.Map{"error": resp.message})
}

func describeChatError(err error) string {
	return classifyChatError(err).message
}

// validationMessage strips the sentinel prefix so clients see only the
// field level reason.
func validationMessage(err error) string {
	message := strings.TrimPrefix(err.Error(), services.ErrValidationFailed.Error()+": ")
	if message == "" {
		return "Invalid request"
	}
	return message
}
