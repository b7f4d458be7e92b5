package services

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/models"
)

const (
	MaxAttachments     = 5
	MaxAttachmentBytes = 10 << 20
	maxAttachmentName  = 255
	sniffLength        = 512
)

var documentExtensions = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".odt":  "application/vnd.oasis.opendocument.text",
}

func isAttachmentType(value string) bool {
	switch value {
	case models.AttachmentImage, models.AttachmentVideo, models.AttachmentAudio, models.AttachmentDocument:
		return true
	default:
		return false
	}
}

// normalizeAttachments validates client supplied descriptors and returns
// cleaned copies.
func normalizeAttachments(attachments []models.Attachment) ([]models.Attachment, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	if len(attachments) > MaxAttachments {
		return nil, validationError("at most %d attachments are allowed", MaxAttachments)
	}

	cleaned := make([]models.Attachment, 0, len(attachments))
	for i, attachment := range attachments {
		parsed, err := url.Parse(strings.TrimSpace(attachment.URL))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, validationError("attachment %d has an invalid url", i)
		}

		kind := strings.ToLower(strings.TrimSpace(attachment.Type))
		if !isAttachmentType(kind) {
			return nil, validationError("attachment %d has unsupported type %q", i, attachment.Type)
		}
		if attachment.Size <= 0 || attachment.Size > MaxAttachmentBytes {
			return nil, validationError("attachment %d size must be between 1 and %d bytes", i, MaxAttachmentBytes)
		}

		name := SanitizeText(attachment.Name)
		if len([]rune(name)) > maxAttachmentName {
			name = string([]rune(name)[:maxAttachmentName])
		}

		cleaned = append(cleaned, models.Attachment{
			URL:      parsed.String(),
			Type:     kind,
			Name:     name,
			Size:     attachment.Size,
			MimeType: strings.TrimSpace(attachment.MimeType),
		})
	}
	return cleaned, nil
}

// classifyUpload maps a sniffed content type and the file extension to an
// attachment category. The sniffer reports office documents as zip, so the
// extension decides for those.
func classifyUpload(detected string, filename string) (kind string, mimeType string, ok bool) {
	detected = strings.ToLower(strings.TrimSpace(strings.Split(detected, ";")[0]))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case strings.HasPrefix(detected, "image/"):
		return models.AttachmentImage, detected, true
	case strings.HasPrefix(detected, "video/"):
		return models.AttachmentVideo, detected, true
	case strings.HasPrefix(detected, "audio/"), detected == "application/ogg":
		return models.AttachmentAudio, detected, true
	case detected == "application/pdf":
		return models.AttachmentDocument, detected, true
	}

	if mimeType, known := documentExtensions[ext]; known {
		switch detected {
		case "text/plain", "application/zip", "application/octet-stream":
			return models.AttachmentDocument, mimeType, true
		}
	}
	return "", "", false
}

func attachmentPreview(attachments []models.Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	return "[" + attachments[0].Type + "]"
}
