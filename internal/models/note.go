package models

import "time"

type Note struct {
	ID        int64     `json:"id"`
	AuthorID  string    `json:"author_id"`
	YouthID   *string   `json:"youth_id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
