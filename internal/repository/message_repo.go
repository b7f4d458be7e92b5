package repository

import (
	"context"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, conversation_id, sender_id, sender_name, content, attachments, translations, reactions, read_by, created_at`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	attachments := message.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	encodedAttachments, err := encodeJSON(attachments)
	if err != nil {
		return err
	}
	readBy, err := encodeJSON(message.ReadBy)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, content, attachments, read_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
	`
	_, err = conn(ctx, r.db).Exec(
		ctx,
		query,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.SenderName,
		message.Content,
		encodedAttachments,
		readBy,
		message.CreatedAt,
	)
	return err
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1
	`
	return scanMessage(conn(ctx, r.db).QueryRow(ctx, query, messageID))
}

func (r *MessageRepository) GetByIDForUpdate(ctx context.Context, messageID string) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1
		FOR UPDATE
	`
	return scanMessage(conn(ctx, r.db).QueryRow(ctx, query, messageID))
}

// ListPage returns up to limit messages newest first. With a cursor only
// messages strictly older than it are returned.
func (r *MessageRepository) ListPage(
	ctx context.Context,
	conversationID string,
	before *models.MessageCursor,
	limit int,
) ([]models.Message, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if before == nil {
		rows, err = conn(ctx, r.db).Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, conversationID, limit)
	} else {
		rows, err = conn(ctx, r.db).Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE conversation_id = $1
			  AND (created_at, id) < ($3, $4)
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, conversationID, limit, before.CreatedAt, before.ID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkRead flips the read flag of readerID on the given messages. Messages
// sent by the reader or already read are left untouched.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	messageIDs []string,
	readerID string,
) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	tag, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE messages
		SET read_by = read_by || jsonb_build_object($2::text, true)
		WHERE id = ANY($1)
		  AND sender_id <> $2
		  AND COALESCE((read_by ->> $2)::boolean, FALSE) = FALSE
	`, messageIDs, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) SetReactions(
	ctx context.Context,
	messageID string,
	reactions map[string][]string,
) error {
	if reactions == nil {
		reactions = map[string][]string{}
	}
	encoded, err := encodeJSON(reactions)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.db).Exec(ctx, `
		UPDATE messages
		SET reactions = $2::jsonb
		WHERE id = $1
	`, messageID, encoded)
	return err
}

func (r *MessageRepository) SetTranslation(
	ctx context.Context,
	messageID string,
	language string,
	text string,
) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE messages
		SET translations = jsonb_set(translations, ARRAY[$2::text], to_jsonb($3::text), true)
		WHERE id = $1
	`, messageID, language, text)
	return err
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message
	var doc messageDocument
	if err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.SenderName,
		&message.Content,
		&doc.attachments,
		&doc.translations,
		&doc.reactions,
		&doc.readBy,
		&message.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := parseMessage(&message, doc); err != nil {
		return nil, err
	}
	return &message, nil
}
