package services

import (
	"slices"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

// CanConverse reports whether a and b are allowed to talk to each other.
// The assignment is checked from both sides since either list may be the
// one that was loaded.
func CanConverse(a, b *models.User) bool {
	if a == nil || b == nil || a.ID == b.ID {
		return false
	}
	if a.Role == models.RoleAdmin || b.Role == models.RoleAdmin {
		return true
	}

	youth, referent := a, b
	if models.IsReferentRole(a.Role) && b.Role == models.RoleYouth {
		youth, referent = b, a
	}
	if youth.Role != models.RoleYouth || !models.IsReferentRole(referent.Role) {
		return false
	}

	return slices.Contains(youth.AssignedReferents, referent.ID) ||
		slices.Contains(referent.AssignedYouths, youth.ID)
}
