package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/jackc/pgx/v5"
)

type noteStore interface {
	Create(ctx context.Context, input repository.CreateNoteInput) (*models.Note, error)
	ListByAuthorID(ctx context.Context, authorID string) ([]models.Note, error)
	GetByID(ctx context.Context, noteID int64) (*models.Note, error)
	Update(ctx context.Context, noteID int64, input repository.UpdateNoteInput) (*models.Note, error)
	Delete(ctx context.Context, noteID int64) error
}

// NoteService manages free-text notes. A note is only ever visible to its
// author.
type NoteService struct {
	notes noteStore
	users userReader
}

type CreateNoteInput struct {
	YouthID *string
	Title   string
	Content string
}

type UpdateNoteInput struct {
	Title   *string
	Content *string
}

func NewNoteService(notes noteStore, users userReader) *NoteService {
	return &NoteService{notes: notes, users: users}
}

func (s *NoteService) CreateNote(ctx context.Context, authorID string, input CreateNoteInput) (*models.Note, error) {
	title, err := noteTitle(input.Title)
	if err != nil {
		return nil, err
	}
	content, err := noteContent(input.Content)
	if err != nil {
		return nil, err
	}

	var youthID *string
	if input.YouthID != nil && strings.TrimSpace(*input.YouthID) != "" {
		subject := strings.TrimSpace(*input.YouthID)
		if err := s.checkSubject(ctx, authorID, subject); err != nil {
			return nil, err
		}
		youthID = &subject
	}

	note, err := s.notes.Create(ctx, repository.CreateNoteInput{
		AuthorID: authorID,
		YouthID:  youthID,
		Title:    title,
		Content:  content,
	})
	if err != nil {
		return nil, storageError(err)
	}
	return note, nil
}

func (s *NoteService) ListNotes(ctx context.Context, authorID string) ([]models.Note, error) {
	notes, err := s.notes.ListByAuthorID(ctx, authorID)
	if err != nil {
		return nil, storageError(err)
	}
	return notes, nil
}

func (s *NoteService) GetNote(ctx context.Context, authorID string, noteID int64) (*models.Note, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageError(err)
	}
	if note.AuthorID != authorID {
		return nil, ErrNotFound
	}
	return note, nil
}

func (s *NoteService) UpdateNote(
	ctx context.Context,
	authorID string,
	noteID int64,
	input UpdateNoteInput,
) (*models.Note, error) {
	if _, err := s.GetNote(ctx, authorID, noteID); err != nil {
		return nil, err
	}

	var update repository.UpdateNoteInput
	if input.Title != nil {
		title, err := noteTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		update.Title = &title
	}
	if input.Content != nil {
		content, err := noteContent(*input.Content)
		if err != nil {
			return nil, err
		}
		update.Content = &content
	}
	if update.Title == nil && update.Content == nil {
		return nil, validationError("nothing to update")
	}

	note, err := s.notes.Update(ctx, noteID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageError(err)
	}
	return note, nil
}

func (s *NoteService) DeleteNote(ctx context.Context, authorID string, noteID int64) error {
	if _, err := s.GetNote(ctx, authorID, noteID); err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, noteID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return storageError(err)
	}
	return nil
}

// checkSubject allows referents to file notes about their own youths and
// admins about any youth.
func (s *NoteService) checkSubject(ctx context.Context, authorID, youthID string) error {
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return storageError(err)
	}

	switch {
	case author.Role == models.RoleAdmin:
	case models.IsReferentRole(author.Role):
		if !slices.Contains(author.AssignedYouths, youthID) {
			return ErrForbidden
		}
	default:
		return validationError("only referents can attach a note to a youth")
	}

	youth, err := s.users.GetByID(ctx, youthID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return storageError(err)
	}
	if youth.Role != models.RoleYouth {
		return validationError("note subject must be a youth")
	}
	return nil
}

func noteTitle(value string) (string, error) {
	title := SanitizeText(value)
	if utf8.RuneCountInString(title) > MaxTitleRunes {
		return "", validationError("title exceeds %d characters", MaxTitleRunes)
	}
	return title, nil
}

func noteContent(value string) (string, error) {
	content := SanitizeText(value)
	if content == "" {
		return "", validationError("note content is required")
	}
	if utf8.RuneCountInString(content) > MaxNoteRunes {
		return "", validationError("note exceeds %d characters", MaxNoteRunes)
	}
	return content, nil
}
