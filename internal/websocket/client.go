package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

type sender interface {
	SendMessage(
		ctx context.Context,
		conversationID string,
		senderID string,
		content string,
		attachments []models.Attachment,
	) (*models.Message, error)
}

// ErrorDescriber turns a service error into the text sent back on the socket.
type ErrorDescriber func(err error) string

// Client bridges one socket to one subscription.
type Client struct {
	conn     *websocket.Conn
	sub      *Subscription
	userID   string
	outgoing chan []byte
}

type Frame struct {
	Type           string                    `json:"type"`
	ConversationID string                    `json:"conversation_id,omitempty"`
	Content        string                    `json:"content,omitempty"`
	Event          *models.ConversationEvent `json:"event,omitempty"`
	Timestamp      string                    `json:"timestamp"`
}

func NewClient(conn *websocket.Conn, sub *Subscription) *Client {
	return &Client{
		conn:     conn,
		sub:      sub,
		userID:   sub.UserID(),
		outgoing: make(chan []byte, 8),
	}
}

// Serve runs the socket until either side goes away. Incoming message
// frames are handed to service; hub events are written out in order.
func (c *Client) Serve(service sender, describe ErrorDescriber) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer c.sub.Cancel()

	go c.readPump(ctx, cancel, service, describe)
	c.writePump(ctx)
	_ = c.conn.Close()
}

func (c *Client) readPump(
	ctx context.Context,
	cancel context.CancelFunc,
	service sender,
	describe ErrorDescriber,
) {
	defer cancel()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type           string              `json:"type"`
			ConversationID string              `json:"conversation_id"`
			Content        string              `json:"content"`
			Attachments    []models.Attachment `json:"attachments"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			c.queueError(ctx, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			c.queueError(ctx, "unsupported message type")
			continue
		}
		if incoming.ConversationID == "" {
			c.queueError(ctx, "invalid conversation id")
			continue
		}

		if _, err := service.SendMessage(
			ctx,
			incoming.ConversationID,
			c.userID,
			incoming.Content,
			incoming.Attachments,
		); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.queueError(ctx, describe(err))
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.outgoing:
			if err := c.write(payload); err != nil {
				return
			}
		case event, ok := <-c.sub.Events():
			if !ok {
				c.writeClose()
				return
			}
			payload, err := json.Marshal(Frame{
				Type:           event.Type,
				ConversationID: event.ConversationID,
				Event:          &event,
				Timestamp:      now(),
			})
			if err != nil {
				log.Error().Err(err).Str("user_id", c.userID).Msg("encode hub event")
				continue
			}
			if err := c.write(payload); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	reason := "subscription closed"
	select {
	case err, ok := <-c.sub.Err():
		if ok && err != nil {
			reason = err.Error()
		}
	default:
	}

	payload, err := json.Marshal(Frame{Type: "error", Content: reason, Timestamp: now()})
	if err == nil {
		_ = c.write(payload)
	}
}

func (c *Client) write(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) queueError(ctx context.Context, message string) {
	payload, err := json.Marshal(Frame{Type: "error", Content: message, Timestamp: now()})
	if err != nil {
		return
	}
	select {
	case c.outgoing <- payload:
	case <-ctx.Done():
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
