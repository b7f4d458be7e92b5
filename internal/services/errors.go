package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized               = errors.New("unauthorized")
	ErrNotParticipant             = errors.New("not a participant")
	ErrConversationNotFound       = errors.New("conversation not found")
	ErrStorageUnavailable         = errors.New("storage unavailable")
	ErrValidationFailed           = errors.New("validation failed")
	ErrUserNotFound               = errors.New("user not found")
	ErrMessageNotFound            = errors.New("message not found")
	ErrNotFound                   = errors.New("not found")
	ErrForbidden                  = errors.New("forbidden")
	ErrConflict                   = errors.New("conflict")
	ErrInvalidStateTransition     = errors.New("invalid state transition")
	ErrTranslationUnavailable     = errors.New("translation unavailable")
	ErrObjectStorageNotConfigured = errors.New("object storage is not configured")
	ErrRateLimited                = errors.New("rate limited")
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrEmailTaken                 = errors.New("email already registered")
)

// storageError marks err as a failure of the backing store. The driver error
// stays reachable through errors.Is/As.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}
