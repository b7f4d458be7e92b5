package repository

import (
	"context"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

type PushTokenRepository struct {
	db DBTX
}

func NewPushTokenRepository(db DBTX) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// Upsert registers token for userID. A token moves to the latest user that
// registers it.
func (r *PushTokenRepository) Upsert(ctx context.Context, token models.PushToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO push_tokens (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = NOW()
	`, token.Token, token.UserID, token.Platform)
	return err
}

func (r *PushTokenRepository) ListByUserID(ctx context.Context, userID string) ([]models.PushToken, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT user_id, token, platform, updated_at
		FROM push_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]models.PushToken, 0)
	for rows.Next() {
		var token models.PushToken
		if err := rows.Scan(&token.UserID, &token.Token, &token.Platform, &token.UpdatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (r *PushTokenRepository) Delete(ctx context.Context, token string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM push_tokens WHERE token = $1`, token)
	return err
}
