package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibreTranslateClient(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload["target"] == "xx" {
			http.Error(w, "unsupported target", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "Hello"})
	}))
	defer server.Close()

	client := NewLibreTranslateClient(server.URL+"/", "secret")

	translated, err := client.Translate(context.Background(), "Bonjour", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello", translated)
	assert.Equal(t, "auto", payload["source"])
	assert.Equal(t, "secret", payload["api_key"])

	_, err = client.Translate(context.Background(), "Bonjour", "xx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSupabaseStorageLifecycle(t *testing.T) {
	var (
		uploadedPath string
		uploadedBody string
		deletedPath  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))

		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/storage/v1/object/sign/"):
			_ = json.NewEncoder(w).Encode(map[string]string{
				"signedURL": "/object/sign/sami/" + strings.TrimPrefix(r.URL.Path, "/storage/v1/object/sign/sami/") + "?token=abc",
			})
		case r.Method == http.MethodPost:
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			body, _ := io.ReadAll(r.Body)
			uploadedPath = r.URL.Path
			uploadedBody = string(body)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete:
			deletedPath = r.URL.Path
			if strings.HasSuffix(r.URL.Path, "gone.png") {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	storage := NewSupabaseStorageService(server.URL, "sami", "service-key")
	ctx := context.Background()

	fileURL, err := storage.UploadFile(ctx, newMemFile([]byte("contenu")), "note.txt", "/attachments/alice/")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/storage/v1/object/public/sami/attachments/alice/note.txt", fileURL)
	assert.Equal(t, "/storage/v1/object/sami/attachments/alice/note.txt", uploadedPath)
	assert.Equal(t, "contenu", uploadedBody)

	signed, err := storage.GetSignedURL(ctx, fileURL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/storage/v1/object/sign/sami/attachments/alice/note.txt?token=abc", signed)

	require.NoError(t, storage.DeleteFile(ctx, fileURL))
	assert.Equal(t, "/storage/v1/object/sami/attachments/alice/note.txt", deletedPath)

	require.NoError(t, storage.DeleteFile(ctx, server.URL+"/storage/v1/object/public/sami/avatars/gone.png"))

	err = storage.DeleteFile(ctx, "https://elsewhere.example.org/storage/v1/object/public/other/x.png")
	assert.Error(t, err)
}

func TestSupabaseStorageRejectsTraversal(t *testing.T) {
	storage := NewSupabaseStorageService("http://127.0.0.1:1", "sami", "key")

	_, err := storage.UploadFile(context.Background(), newMemFile([]byte("x")), "a.txt", "../../etc")
	assert.Error(t, err)
}
