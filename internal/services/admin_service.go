package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/jackc/pgx/v5"
)

type assignmentStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, role string) ([]models.User, error)
	Assign(ctx context.Context, youthID, referentID string) error
	Unassign(ctx context.Context, youthID, referentID string) error
}

// AdminService backs the admin screens: user listing and referent
// assignment.
type AdminService struct {
	users assignmentStore
}

func NewAdminService(users assignmentStore) *AdminService {
	return &AdminService{users: users}
}

func (s *AdminService) ListUsers(ctx context.Context, role string) ([]models.User, error) {
	role = strings.TrimSpace(role)
	if role != "" && !models.IsValidRole(role) {
		return nil, validationError("invalid role %q", role)
	}
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, storageError(err)
	}
	return users, nil
}

func (s *AdminService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageError(err)
	}
	return user, nil
}

// Assign makes referentID a referent of youthID. Assigning twice is a no-op.
func (s *AdminService) Assign(ctx context.Context, youthID, referentID string) (*models.User, error) {
	if err := s.checkPair(ctx, youthID, referentID); err != nil {
		return nil, err
	}
	if err := s.users.Assign(ctx, youthID, referentID); err != nil {
		return nil, storageError(err)
	}
	return s.GetUser(ctx, youthID)
}

func (s *AdminService) Unassign(ctx context.Context, youthID, referentID string) (*models.User, error) {
	if err := s.checkPair(ctx, youthID, referentID); err != nil {
		return nil, err
	}
	if err := s.users.Unassign(ctx, youthID, referentID); err != nil {
		return nil, storageError(err)
	}
	return s.GetUser(ctx, youthID)
}

func (s *AdminService) checkPair(ctx context.Context, youthID, referentID string) error {
	if strings.TrimSpace(youthID) == "" || strings.TrimSpace(referentID) == "" {
		return validationError("youth_id and referent_id are required")
	}

	youth, err := s.GetUser(ctx, youthID)
	if err != nil {
		return err
	}
	if youth.Role != models.RoleYouth {
		return validationError("user %s is not a youth", youthID)
	}

	referent, err := s.GetUser(ctx, referentID)
	if err != nil {
		return err
	}
	if !models.IsReferentRole(referent.Role) {
		return validationError("user %s is not a referent", referentID)
	}
	return nil
}
