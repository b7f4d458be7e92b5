package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
)

type stubAuthService struct {
	registerErr error
	loginErr    error
	lastInput   services.RegisterInput
}

func (s *stubAuthService) Register(_ context.Context, input services.RegisterInput) (*models.User, string, error) {
	s.lastInput = input
	if s.registerErr != nil {
		return nil, "", s.registerErr
	}
	return &models.User{ID: "u1", Email: input.Email, Role: input.Role}, "token", nil
}

func (s *stubAuthService) Login(_ context.Context, email string, _ string) (*models.User, string, error) {
	if s.loginErr != nil {
		return nil, "", s.loginErr
	}
	return &models.User{ID: "u1", Email: email}, "token", nil
}

func (s *stubAuthService) Me(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func TestRegisterReturnsToken(t *testing.T) {
	service := &stubAuthService{}
	handler := NewAuthHandler(service)

	app := fiber.New()
	app.Post("/api/auth/register", handler.Register)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{
		"email": "alice@example.org",
		"password": "longenough",
		"display_name": "Alice",
		"role": "youth"
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastInput.DisplayName != "Alice" || service.lastInput.Role != "youth" {
		t.Fatalf("unexpected input: %+v", service.lastInput)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Token != "token" {
		t.Fatalf("unexpected token %q", body.Token)
	}
}

func TestRegisterMapsEmailTaken(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{registerErr: services.ErrEmailTaken})

	app := fiber.New()
	app.Post("/api/auth/register", handler.Register)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"a@b.c","password":"longenough","role":"youth"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestLoginMapsInvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{loginErr: services.ErrInvalidCredentials})

	app := fiber.New()
	app.Post("/api/auth/login", handler.Login)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@b.c","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

type stubPushTokenService struct {
	err          error
	lastUserID   string
	lastPlatform string
}

func (s *stubPushTokenService) Register(_ context.Context, userID, _ string, platform string) error {
	s.lastUserID = userID
	s.lastPlatform = platform
	return s.err
}

func TestRegisterPushTokenAccepted(t *testing.T) {
	service := &stubPushTokenService{}
	handler := NewPushTokenHandler(service)

	app := newActorApp("alice", models.RoleYouth)
	app.Post("/api/v1/push-tokens", handler.Register)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/push-tokens", strings.NewReader(`{"token":"abc","platform":"android"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if service.lastUserID != "alice" || service.lastPlatform != "android" {
		t.Fatalf("unexpected registration: %q %q", service.lastUserID, service.lastPlatform)
	}
}
