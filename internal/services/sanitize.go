package services

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxMessageRunes = 1000
	MaxNoteRunes    = 5000
	MaxTitleRunes   = 200
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	// StrictPolicy keeps the text of script and style elements; drop them
	// first so their bodies never end up in a message.
	scriptOrStyle = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)\s*>`)
)

// maxSanitizeRounds bounds how many levels of entity escaping are unwrapped.
const maxSanitizeRounds = 8

// SanitizeText strips every HTML tag from input and trims the result.
// Entities are decoded so stored text is plain; markup smuggled in as
// entities is stripped on the next round. Input still changing after
// maxSanitizeRounds is returned escaped, never decoded.
func SanitizeText(input string) string {
	cleaned, _ := sanitizeToFixedPoint(input)
	return cleaned
}

// sanitizeToFixedPoint reports false when the text did not settle, in which
// case the returned text is the escaped policy output.
func sanitizeToFixedPoint(input string) (string, bool) {
	cleaned := input
	for range maxSanitizeRounds {
		next := html.UnescapeString(stripMarkup(cleaned))
		if next == cleaned {
			return strings.TrimSpace(cleaned), true
		}
		cleaned = next
	}
	return strings.TrimSpace(stripMarkup(cleaned)), false
}

func stripMarkup(text string) string {
	return strictPolicy.Sanitize(scriptOrStyle.ReplaceAllString(text, ""))
}

// sanitizeMessageContent returns the text that will be stored for a message.
// Content over the limit is rejected rather than truncated.
func sanitizeMessageContent(content string, hasAttachments bool) (string, error) {
	cleaned, settled := sanitizeToFixedPoint(content)
	if !settled {
		return "", validationError("message contains nested markup")
	}
	if utf8.RuneCountInString(cleaned) > MaxMessageRunes {
		return "", validationError("message exceeds %d characters", MaxMessageRunes)
	}
	if cleaned == "" && !hasAttachments {
		return "", validationError("message is empty")
	}
	return cleaned, nil
}
