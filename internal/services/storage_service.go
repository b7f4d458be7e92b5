package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

type StorageService interface {
	UploadFile(ctx context.Context, file multipart.File, filename string, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
	GetSignedURL(ctx context.Context, fileURL string) (string, error)
}

// SupabaseStorageService keeps avatars and attachments in a Supabase storage
// bucket. Uploaded objects are served from the bucket's public URL.
type SupabaseStorageService struct {
	baseURL    string
	bucket     string
	serviceKey string
	signTTL    time.Duration
	httpClient *http.Client
}

func NewSupabaseStorageService(baseURL, bucket, serviceKey string) *SupabaseStorageService {
	return &SupabaseStorageService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		signTTL:    time.Hour,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *SupabaseStorageService) UploadFile(ctx context.Context, file multipart.File, filename string, folder string) (string, error) {
	objectPath := path.Join(strings.Trim(folder, "/"), path.Base(filename))
	if objectPath == "" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("upload file: invalid object path %q", objectPath)
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxAttachmentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(content) > MaxAttachmentBytes {
		return "", fmt.Errorf("upload file: content exceeds %d bytes", MaxAttachmentBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(objectPath), bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Content-Type", http.DetectContentType(content))

	if err := s.do(req, "upload file", nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

func (s *SupabaseStorageService) DeleteFile(ctx context.Context, fileURL string) error {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(objectPath), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	s.authorize(req)

	err = s.do(req, "delete file", nil)
	if errorsIsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

func (s *SupabaseStorageService) GetSignedURL(ctx context.Context, fileURL string) (string, error) {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]int{"expiresIn": int(s.signTTL.Seconds())})
	if err != nil {
		return "", fmt.Errorf("marshal signed url payload: %w", err)
	}

	signURL := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build signed url request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var response struct {
		SignedURL string `json:"signedURL"`
	}
	if err := s.do(req, "get signed url", &response); err != nil {
		return "", err
	}
	if response.SignedURL == "" {
		return "", fmt.Errorf("signed url missing from response")
	}
	return fmt.Sprintf("%s/storage/v1%s", s.baseURL, response.SignedURL), nil
}

func (s *SupabaseStorageService) objectURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
}

func (s *SupabaseStorageService) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

type storageStatusError struct {
	operation string
	status    int
	body      string
}

func (e *storageStatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.operation, e.status, e.body)
}

func errorsIsStatus(err error, status int) bool {
	statusErr, ok := err.(*storageStatusError)
	return ok && statusErr.status == status
}

func (s *SupabaseStorageService) do(req *http.Request, operation string, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &storageStatusError{
			operation: operation,
			status:    resp.StatusCode,
			body:      strings.TrimSpace(string(body)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (s *SupabaseStorageService) objectPathFromURL(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}

	for _, prefix := range []string{
		"/storage/v1/object/public/" + s.bucket + "/",
		"/storage/v1/object/" + s.bucket + "/",
	} {
		if strings.HasPrefix(parsed.Path, prefix) {
			return strings.TrimPrefix(parsed.Path, prefix), nil
		}
	}
	return "", fmt.Errorf("file url does not belong to configured bucket")
}
