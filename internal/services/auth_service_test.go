package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/Gokhangurbuz92/sami-app-sub000/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type memAccounts struct {
	memUsers
	createErr error
	avatarErr error
}

func (m memAccounts) CreateUser(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.users {
		if existing.Email == user.Email {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	user.ID = fmt.Sprintf("user-%d", len(m.db.users)+1)
	copied := *user
	m.db.users[user.ID] = &copied
	return nil
}

func (m memAccounts) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, user := range m.db.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memAccounts) UpdateProfile(_ context.Context, id string, input repository.UpdateProfileInput) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	user, ok := m.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}
	if input.PreferredLanguage != nil {
		user.PreferredLanguage = *input.PreferredLanguage
	}
	copied := *user
	return &copied, nil
}

func (m memAccounts) UpdateAvatarURL(_ context.Context, id string, avatarURL *string) error {
	if m.avatarErr != nil {
		return m.avatarErr
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.users[id].AvatarURL = avatarURL
	return nil
}

func newAccounts() memAccounts {
	return memAccounts{memUsers: memUsers{db: newMemDB(caseloadUsers()...)}}
}

func TestRegisterAndLogin(t *testing.T) {
	accounts := newAccounts()
	service := NewAuthService(accounts, "test-secret")
	ctx := context.Background()

	user, token, err := service.Register(ctx, RegisterInput{
		Email:       " Sara@Example.org ",
		Password:    "motdepasse",
		DisplayName: "<b>Sara</b>",
		Role:        models.RoleCoReferent,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Email != "sara@example.org" || user.DisplayName != "Sara" || user.PreferredLanguage != "fr" {
		t.Fatalf("unexpected user: %+v", user)
	}
	claims, err := utils.ValidateToken(token, "test-secret")
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != models.RoleCoReferent {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, _, err := service.Login(ctx, "sara@example.org", "motdepasse"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, _, err := service.Login(ctx, "sara@example.org", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := service.Login(ctx, "nobody@example.org", "motdepasse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	_, _, err = service.Register(ctx, RegisterInput{Email: "sara@example.org", Password: "motdepasse", DisplayName: "Sara", Role: models.RoleYouth})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	service := NewAuthService(newAccounts(), "test-secret")

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "motdepasse", DisplayName: "A", Role: models.RoleYouth}},
		{"short password", RegisterInput{Email: "a@b.org", Password: "short", DisplayName: "A", Role: models.RoleYouth}},
		{"admin role", RegisterInput{Email: "a@b.org", Password: "motdepasse", DisplayName: "A", Role: models.RoleAdmin}},
		{"empty name", RegisterInput{Email: "a@b.org", Password: "motdepasse", DisplayName: " ", Role: models.RoleYouth}},
		{"long name", RegisterInput{Email: "a@b.org", Password: "motdepasse", DisplayName: strings.Repeat("n", maxDisplayName+1), Role: models.RoleYouth}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := service.Register(context.Background(), tc.input); !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterStorageFailure(t *testing.T) {
	accounts := newAccounts()
	accounts.createErr = errDriver
	service := NewAuthService(accounts, "test-secret")

	_, _, err := service.Register(context.Background(), RegisterInput{Email: "a@b.org", Password: "motdepasse", DisplayName: "A", Role: models.RoleYouth})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	accounts := newAccounts()
	service := NewAuthService(accounts, "test-secret")
	ctx := context.Background()

	if err := service.EnsureAdmin(ctx, "admin@sami.org", "bootstrap-pass"); err != nil {
		t.Fatalf("EnsureAdmin returned error: %v", err)
	}
	if err := service.EnsureAdmin(ctx, "ADMIN@sami.org", "bootstrap-pass"); err != nil {
		t.Fatalf("second EnsureAdmin returned error: %v", err)
	}

	admin, err := accounts.GetByEmail(ctx, "admin@sami.org")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("expected admin role, got %q", admin.Role)
	}
	if len(accounts.db.users) != len(caseloadUsers())+1 {
		t.Fatalf("expected exactly one account created, got %d users", len(accounts.db.users))
	}

	if err := service.EnsureAdmin(ctx, "", ""); err != nil {
		t.Fatalf("EnsureAdmin without credentials should be a no-op: %v", err)
	}
}

func TestUpdateProfileNormalizesLanguage(t *testing.T) {
	service := NewProfileService(newAccounts(), nil)

	user, err := service.UpdateProfile(context.Background(), "alice", UpdateProfileInput{PreferredLanguage: stringPtr("ar-MA")})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if user.PreferredLanguage != "ar" {
		t.Fatalf("expected base language ar, got %q", user.PreferredLanguage)
	}

	if _, err := service.UpdateProfile(context.Background(), "alice", UpdateProfileInput{}); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := service.UpdateProfile(context.Background(), "ghost", UpdateProfileInput{DisplayName: stringPtr("G")}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUploadAvatarReplacesPrevious(t *testing.T) {
	accounts := newAccounts()
	previous := "https://cdn.example.org/avatars/old.png"
	accounts.db.users["alice"].AvatarURL = &previous
	storage := &fakeStorage{}
	service := NewProfileService(accounts, storage)

	user, err := service.UploadAvatar(context.Background(), "alice", newMemFile(pngHeader), "me.png", int64(len(pngHeader)))
	if err != nil {
		t.Fatalf("UploadAvatar returned error: %v", err)
	}
	if user.AvatarURL == nil || !strings.Contains(*user.AvatarURL, "/avatars/alice-") {
		t.Fatalf("unexpected avatar url: %v", user.AvatarURL)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != previous {
		t.Fatalf("expected previous avatar deleted, got %v", storage.deleted)
	}
}

func TestUploadAvatarCleansUpOnStorageFailure(t *testing.T) {
	accounts := newAccounts()
	accounts.avatarErr = errDriver
	storage := &fakeStorage{}
	service := NewProfileService(accounts, storage)

	_, err := service.UploadAvatar(context.Background(), "alice", newMemFile(pngHeader), "me.png", int64(len(pngHeader)))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if len(storage.uploads) != 1 || len(storage.deleted) != 1 {
		t.Fatalf("expected the new object to be removed, uploads=%v deleted=%v", storage.uploads, storage.deleted)
	}
}

func TestUploadAvatarValidation(t *testing.T) {
	service := NewProfileService(newAccounts(), &fakeStorage{})
	ctx := context.Background()

	cases := []struct {
		name     string
		file     multipart.File
		filename string
		size     int64
		want     error
	}{
		{"wrong extension", newMemFile(pngHeader), "me.gif", 10, ErrValidationFailed},
		{"too large", newMemFile(pngHeader), "me.png", MaxAvatarBytes + 1, ErrValidationFailed},
		{"empty", newMemFile(nil), "me.png", 0, ErrValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.UploadAvatar(ctx, "alice", tc.file, tc.filename, tc.size); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	unconfigured := NewProfileService(newAccounts(), nil)
	if _, err := unconfigured.UploadAvatar(ctx, "alice", newMemFile(pngHeader), "me.png", 10); !errors.Is(err, ErrObjectStorageNotConfigured) {
		t.Fatalf("expected ErrObjectStorageNotConfigured, got %v", err)
	}
}

type failingTokenWriter struct {
	calls int
}

func (w *failingTokenWriter) Upsert(context.Context, models.PushToken) error {
	w.calls++
	return errDriver
}

func TestRegisterPushTokenSwallowsStorageErrors(t *testing.T) {
	writer := &failingTokenWriter{}
	service := NewPushTokenService(writer)

	if err := service.Register(context.Background(), "alice", "device-token", "Android"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if writer.calls != 1 {
		t.Fatalf("expected one upsert, got %d", writer.calls)
	}

	if err := service.Register(context.Background(), "alice", "device-token", "blackberry"); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := service.Register(context.Background(), "alice", " ", "web"); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
