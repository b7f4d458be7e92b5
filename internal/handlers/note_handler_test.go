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
)

type stubNoteService struct {
	createResult *models.Note
	createErr    error
	listResult   []models.Note
	getErr       error
	deleteErr    error
	lastAuthorID string
	lastInput    services.CreateNoteInput
	lastNoteID   int64
}

func (s *stubNoteService) CreateNote(_ context.Context, authorID string, input services.CreateNoteInput) (*models.Note, error) {
	s.lastAuthorID = authorID
	s.lastInput = input
	return s.createResult, s.createErr
}

func (s *stubNoteService) ListNotes(_ context.Context, authorID string) ([]models.Note, error) {
	s.lastAuthorID = authorID
	return s.listResult, nil
}

func (s *stubNoteService) GetNote(_ context.Context, authorID string, noteID int64) (*models.Note, error) {
	s.lastAuthorID = authorID
	s.lastNoteID = noteID
	return nil, s.getErr
}

func (s *stubNoteService) UpdateNote(_ context.Context, authorID string, noteID int64, _ services.UpdateNoteInput) (*models.Note, error) {
	s.lastAuthorID = authorID
	s.lastNoteID = noteID
	return &models.Note{ID: noteID}, nil
}

func (s *stubNoteService) DeleteNote(_ context.Context, authorID string, noteID int64) error {
	s.lastAuthorID = authorID
	s.lastNoteID = noteID
	return s.deleteErr
}

func TestCreateNoteForAssignedYouth(t *testing.T) {
	youthID := "alice"
	service := &stubNoteService{
		createResult: &models.Note{ID: 3, AuthorID: "bob", YouthID: &youthID, Title: "Suivi", Content: "RDV CAF"},
	}
	handler := NewNoteHandler(service)

	app := newActorApp("bob", models.RoleReferent)
	app.Post("/api/v1/notes", handler.CreateNote)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(`{"youth_id":"alice","title":"Suivi","content":"RDV CAF"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastAuthorID != "bob" || service.lastInput.YouthID == nil || *service.lastInput.YouthID != "alice" {
		t.Fatalf("unexpected input: %q %+v", service.lastAuthorID, service.lastInput)
	}

	var body struct {
		Note models.Note `json:"note"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Note.ID != 3 {
		t.Fatalf("unexpected note: %+v", body.Note)
	}
}

func TestCreateNoteForUnassignedYouthIsForbidden(t *testing.T) {
	handler := NewNoteHandler(&stubNoteService{createErr: services.ErrForbidden})

	app := newActorApp("bob", models.RoleReferent)
	app.Post("/api/v1/notes", handler.CreateNote)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(`{"youth_id":"carol","content":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestGetNoteOfAnotherAuthorIsNotFound(t *testing.T) {
	service := &stubNoteService{getErr: services.ErrNotFound}
	handler := NewNoteHandler(service)

	app := newActorApp("alice", models.RoleYouth)
	app.Get("/api/v1/notes/:id", handler.GetNote)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/notes/44", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if service.lastNoteID != 44 {
		t.Fatalf("expected note 44, got %d", service.lastNoteID)
	}
}

func TestDeleteNoteReturnsNoContent(t *testing.T) {
	service := &stubNoteService{}
	handler := NewNoteHandler(service)

	app := newActorApp("alice", models.RoleYouth)
	app.Delete("/api/v1/notes/:id", handler.DeleteNote)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/notes/8", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}
