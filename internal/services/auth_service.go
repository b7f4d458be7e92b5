package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

const (
	minPasswordLength = 8
	maxDisplayName    = 100
)

type authUserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type AuthService struct {
	users     authUserStore
	jwtSecret string
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

func NewAuthService(users authUserStore, jwtSecret string) *AuthService {
	return &AuthService{users: users, jwtSecret: jwtSecret}
}

// Register creates a youth, referent or co-referent account. Admin accounts
// only come from EnsureAdmin.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, "", err
	}
	if len(input.Password) < minPasswordLength {
		return nil, "", validationError("password must be at least %d characters", minPasswordLength)
	}
	role := strings.TrimSpace(input.Role)
	if role != models.RoleYouth && !models.IsReferentRole(role) {
		return nil, "", validationError("invalid role")
	}
	displayName, err := normalizeDisplayName(input.DisplayName)
	if err != nil {
		return nil, "", err
	}

	user, err := s.createUser(ctx, email, input.Password, displayName, role)
	if err != nil {
		return nil, "", err
	}

	token, err := utils.GenerateToken(user.ID, user.Role, s.jwtSecret)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (*models.User, string, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", storageError(err)
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(user.ID, user.Role, s.jwtSecret)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email string, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	existing, err := s.users.GetByEmail(ctx, normalized)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			log.Warn().Str("email", normalized).Msg("default admin email belongs to a non-admin account")
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return storageError(err)
	}

	if _, err := s.createUser(ctx, normalized, password, "Administrator", models.RoleAdmin); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil
		}
		return err
	}
	log.Info().Str("email", normalized).Msg("default admin account created")
	return nil
}

func (s *AuthService) createUser(
	ctx context.Context,
	email string,
	password string,
	displayName string,
	role string,
) (*models.User, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:             email,
		PasswordHash:      hashed,
		DisplayName:       displayName,
		Role:              role,
		PreferredLanguage: "fr",
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, storageError(err)
	}
	return user, nil
}

func normalizeEmail(value string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil {
		return "", validationError("invalid email format")
	}
	return strings.ToLower(parsed.Address), nil
}

func normalizeDisplayName(value string) (string, error) {
	name := SanitizeText(value)
	if name == "" {
		return "", validationError("display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		return "", validationError("display name exceeds %d characters", maxDisplayName)
	}
	return name, nil
}
