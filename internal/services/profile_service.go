package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

const MaxAvatarBytes = 5 << 20

type profileStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, input repository.UpdateProfileInput) (*models.User, error)
	UpdateAvatarURL(ctx context.Context, id string, avatarURL *string) error
}

type ProfileService struct {
	users   profileStore
	storage StorageService
}

type UpdateProfileInput struct {
	DisplayName       *string
	PreferredLanguage *string
}

func NewProfileService(users profileStore, storage StorageService) *ProfileService {
	return &ProfileService{users: users, storage: storage}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

func (s *ProfileService) UpdateProfile(
	ctx context.Context,
	userID string,
	input UpdateProfileInput,
) (*models.User, error) {
	var update repository.UpdateProfileInput

	if input.DisplayName != nil {
		name, err := normalizeDisplayName(*input.DisplayName)
		if err != nil {
			return nil, err
		}
		update.DisplayName = &name
	}
	if input.PreferredLanguage != nil {
		tag, err := language.Parse(strings.TrimSpace(*input.PreferredLanguage))
		if err != nil {
			return nil, validationError("unknown language %q", *input.PreferredLanguage)
		}
		base, _ := tag.Base()
		code := base.String()
		update.PreferredLanguage = &code
	}
	if update.DisplayName == nil && update.PreferredLanguage == nil {
		return nil, validationError("nothing to update")
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

// UploadAvatar stores a new avatar and removes the previous object.
func (s *ProfileService) UploadAvatar(
	ctx context.Context,
	userID string,
	file multipart.File,
	filename string,
	size int64,
) (*models.User, error) {
	if s.storage == nil {
		return nil, ErrObjectStorageNotConfigured
	}
	if file == nil || size <= 0 {
		return nil, validationError("avatar file is empty")
	}
	if size > MaxAvatarBytes {
		return nil, validationError("avatar file exceeds 5MB limit")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return nil, validationError("avatar must be a jpg, jpeg, png, or webp file")
	}

	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("%s-%s%s", userID, uuid.NewString(), ext)
	avatarURL, err := s.storage.UploadFile(ctx, file, objectName, "avatars")
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateAvatarURL(ctx, userID, &avatarURL); err != nil {
		if cleanupErr := s.storage.DeleteFile(ctx, avatarURL); cleanupErr != nil {
			return nil, errors.Join(storageError(err), fmt.Errorf("cleanup failed: %w", cleanupErr))
		}
		return nil, storageError(err)
	}

	if current.AvatarURL != nil && *current.AvatarURL != "" && *current.AvatarURL != avatarURL {
		if err := s.storage.DeleteFile(ctx, *current.AvatarURL); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to delete previous avatar")
		}
	}

	current.AvatarURL = &avatarURL
	return current, nil
}
