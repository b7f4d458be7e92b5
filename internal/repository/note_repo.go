package repository

import (
	"context"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
	"github.com/jackc/pgx/v5"
)

const noteColumns = `id, author_id, youth_id, title, content, created_at, updated_at`

type CreateNoteInput struct {
	AuthorID string
	YouthID  *string
	Title    string
	Content  string
}

type UpdateNoteInput struct {
	Title   *string
	Content *string
}

type NoteRepository struct {
	db DBTX
}

func NewNoteRepository(db DBTX) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, input CreateNoteInput) (*models.Note, error) {
	query := `
		INSERT INTO notes (author_id, youth_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + noteColumns

	return scanNote(conn(ctx, r.db).QueryRow(
		ctx,
		query,
		input.AuthorID,
		input.YouthID,
		input.Title,
		input.Content,
	))
}

func (r *NoteRepository) ListByAuthorID(ctx context.Context, authorID string) ([]models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE author_id = $1
		ORDER BY updated_at DESC, id DESC
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notes, nil
}

func (r *NoteRepository) GetByID(ctx context.Context, noteID int64) (*models.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE id = $1
	`
	return scanNote(conn(ctx, r.db).QueryRow(ctx, query, noteID))
}

func (r *NoteRepository) Update(ctx context.Context, noteID int64, input UpdateNoteInput) (*models.Note, error) {
	query := `
		UPDATE notes
		SET title = COALESCE($2, title),
			content = COALESCE($3, content),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + noteColumns

	return scanNote(conn(ctx, r.db).QueryRow(ctx, query, noteID, input.Title, input.Content))
}

func (r *NoteRepository) Delete(ctx context.Context, noteID int64) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM notes WHERE id = $1`, noteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanNote(row pgx.Row) (*models.Note, error) {
	var note models.Note
	if err := row.Scan(
		&note.ID,
		&note.AuthorID,
		&note.YouthID,
		&note.Title,
		&note.Content,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &note, nil
}
