package models

import "time"

const (
	RoleYouth      = "youth"
	RoleReferent   = "referent"
	RoleCoReferent = "co-referent"
	RoleAdmin      = "admin"
)

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	DisplayName       string    `json:"display_name"`
	Role              string    `json:"role"`
	AvatarURL         *string   `json:"avatar_url"`
	PreferredLanguage string    `json:"preferred_language"`
	AssignedReferents []string  `json:"assigned_referents,omitempty"`
	AssignedYouths    []string  `json:"assigned_youths,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleYouth, RoleReferent, RoleCoReferent, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsReferentRole reports whether role can be assigned to youths.
func IsReferentRole(role string) bool {
	return role == RoleReferent || role == RoleCoReferent
}

type PushToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
