package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, display_name, role, avatar_url, preferred_language, created_at, updated_at`

type UpdateProfileInput struct {
	DisplayName       *string
	PreferredLanguage *string
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.PreferredLanguage == "" {
		user.PreferredLanguage = "fr"
	}
	query := `
		INSERT INTO users (id, email, password_hash, display_name, role, preferred_language)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return conn(ctx, r.db).QueryRow(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Role,
		user.PreferredLanguage,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssignments(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID returns the user together with its assignment lists.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssignments(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetDisplayNames resolves names for a batch of ids. Unknown ids are absent
// from the result.
func (r *UserRepository) GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id, display_name
		FROM users
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (r *UserRepository) List(ctx context.Context, role string) ([]models.User, error) {
	args := []any{}
	where := ""
	if role = strings.TrimSpace(role); role != "" {
		args = append(args, role)
		where = fmt.Sprintf("WHERE role = $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		%s
		ORDER BY display_name ASC, id ASC
	`, userColumns, where)

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) UpdateProfile(
	ctx context.Context,
	id string,
	input UpdateProfileInput,
) (*models.User, error) {
	query := `
		UPDATE users
		SET display_name = COALESCE($2, display_name),
			preferred_language = COALESCE($3, preferred_language),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, query, id, input.DisplayName, input.PreferredLanguage))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssignments(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateAvatarURL(ctx context.Context, id string, avatarURL *string) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users
		SET avatar_url = $2, updated_at = NOW()
		WHERE id = $1
	`, id, avatarURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepository) Assign(ctx context.Context, youthID, referentID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO referent_assignments (youth_id, referent_id)
		VALUES ($1, $2)
		ON CONFLICT (youth_id, referent_id) DO NOTHING
	`, youthID, referentID)
	return err
}

func (r *UserRepository) Unassign(ctx context.Context, youthID, referentID string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM referent_assignments
		WHERE youth_id = $1 AND referent_id = $2
	`, youthID, referentID)
	return err
}

func (r *UserRepository) loadAssignments(ctx context.Context, user *models.User) error {
	var (
		column string
		other  string
	)
	switch {
	case user.Role == models.RoleYouth:
		column, other = "youth_id", "referent_id"
	case models.IsReferentRole(user.Role):
		column, other = "referent_id", "youth_id"
	default:
		return nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM referent_assignments
		WHERE %s = $1
		ORDER BY created_at ASC
	`, other, column)

	rows, err := conn(ctx, r.db).Query(ctx, query, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if user.Role == models.RoleYouth {
		user.AssignedReferents = ids
	} else {
		user.AssignedYouths = ids
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.AvatarURL,
		&user.PreferredLanguage,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
