package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, participants, last_message, last_message_at, last_sender_id, unread_count, version, created_at, updated_at`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateIfAbsent inserts the conversation unless a row with the same id
// exists. It returns the stored row and whether this call created it.
func (r *ConversationRepository) CreateIfAbsent(
	ctx context.Context,
	conversation *models.Conversation,
) (*models.Conversation, bool, error) {
	unread, err := encodeJSON(conversation.UnreadCount)
	if err != nil {
		return nil, false, err
	}

	query := `
		INSERT INTO conversations (id, participants, unread_count, version, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, $4, $4)
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + conversationColumns

	created, err := scanConversation(conn(ctx, r.db).QueryRow(
		ctx,
		query,
		conversation.ID,
		conversation.Participants,
		unread,
		conversation.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.GetByID(ctx, conversation.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
	`
	return scanConversation(conn(ctx, r.db).QueryRow(ctx, query, conversationID))
}

func (r *ConversationRepository) GetByIDForUpdate(ctx context.Context, conversationID string) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
		FOR NO KEY UPDATE
	`
	return scanConversation(conn(ctx, r.db).QueryRow(ctx, query, conversationID))
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
) ([]models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participants @> ARRAY[$1::text]
		ORDER BY COALESCE(last_message_at, created_at) DESC, id DESC
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

// ApplyMessage records a sent message on the conversation row: the
// denormalised last-message fields are replaced and every participant other
// than the sender gets its unread counter incremented in the same statement.
func (r *ConversationRepository) ApplyMessage(
	ctx context.Context,
	conversationID string,
	senderID string,
	preview string,
	sentAt time.Time,
) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET last_message = $3,
			last_message_at = $4,
			last_sender_id = $2,
			unread_count = unread_count || COALESCE((
				SELECT jsonb_object_agg(p, COALESCE((unread_count ->> p)::int, 0) + 1)
				FROM unnest(participants) AS p
				WHERE p <> $2
			), '{}'::jsonb),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(conn(ctx, r.db).QueryRow(ctx, query, conversationID, senderID, preview, sentAt))
}

// ResetUnread sets participantID's counter to the number of messages it has
// not read that are newer than newerThan. A nil cursor counts every unread
// message.
func (r *ConversationRepository) ResetUnread(
	ctx context.Context,
	conversationID string,
	participantID string,
	newerThan *models.MessageCursor,
) (*models.Conversation, error) {
	var (
		after   *time.Time
		afterID *string
	)
	if newerThan != nil {
		after, afterID = &newerThan.CreatedAt, &newerThan.ID
	}

	query := `
		UPDATE conversations
		SET unread_count = jsonb_set(unread_count, ARRAY[$2::text], to_jsonb((
				SELECT COUNT(*)::int
				FROM messages
				WHERE conversation_id = $1
				  AND sender_id <> $2
				  AND COALESCE((read_by ->> $2)::boolean, FALSE) = FALSE
				  AND ($3::timestamptz IS NULL OR (created_at, id) > ($3::timestamptz, $4::text))
			)), true),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(conn(ctx, r.db).QueryRow(ctx, query, conversationID, participantID, after, afterID))
}

// Touch bumps the version of a conversation whose messages changed.
func (r *ConversationRepository) Touch(ctx context.Context, conversationID string) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET version = version + 1,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + conversationColumns

	return scanConversation(conn(ctx, r.db).QueryRow(ctx, query, conversationID))
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conversation models.Conversation
	var unread []byte
	if err := row.Scan(
		&conversation.ID,
		&conversation.Participants,
		&conversation.LastMessage,
		&conversation.LastMessageAt,
		&conversation.LastSenderID,
		&unread,
		&conversation.Version,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := parseConversation(&conversation, unread); err != nil {
		return nil, err
	}
	return &conversation, nil
}
