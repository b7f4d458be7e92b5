package handlers

import (
	"strconv"
	"strings"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLimit(raw string) int {
	return min(parsePositiveInt(raw, defaultPageLimit), maxPageLimit)
}

// paginate slices an in-memory result set for list endpoints that are not
// cursor based.
func paginate[T any](items []T, page, limit int) ([]T, models.PaginationMeta) {
	total := len(items)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return items[start:end], models.PaginationMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
