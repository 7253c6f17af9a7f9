package documents_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"kooperatif-backend/internal/documents"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"
	"kooperatif-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, app *fiber.App, token, filename string, content []byte, fields map[string]string) (int, respond.Envelope) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env respond.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestUploadDownloadDelete(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	cfg := testutil.Config(t)
	app, api := testutil.NewApp(cfg)
	documents.Register(api, cfg)

	owner := testutil.CreateUser(t, db, "sahip@example.com", models.RoleMember)
	other := testutil.CreateUser(t, db, "diger@example.com", models.RoleMember)
	ownerTok := testutil.Token(t, cfg, owner)
	otherTok := testutil.Token(t, cfg, other)

	content := []byte("2026 genel kurul tutanağı")
	status, env := upload(t, app, ownerTok, "tutanak.txt", content,
		map[string]string{"title": "Tutanak", "category": "tutanak"})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	doc := env.Data.(map[string]any)
	assert.Equal(t, "text/plain", doc["mime_type"])
	assert.NotContains(t, doc, "stored_name")
	id := uint(doc["id"].(float64))

	var stored models.Document
	require.NoError(t, db.First(&stored, id).Error)
	onDisk := filepath.Join(cfg.UploadDir, stored.StoredName)
	assert.FileExists(t, onDisk)

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/documents/%d/download", id), nil)
	req.Header.Set("Authorization", "Bearer "+otherTok)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "tutanak.txt")

	status, env = testutil.Do(t, app, "GET", "/api/documents?category=tutanak", otherTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, env.Data.(map[string]any)["total_rows"])

	status, _ = testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/documents/%d", id), otherTok, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/documents/%d", id), ownerTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	_, err = os.Stat(onDisk)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUploadRejectsTypeAndSize(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	cfg := testutil.Config(t)
	cfg.MaxUploadBytes = 16
	app, api := testutil.NewApp(cfg)
	documents.Register(api, cfg)

	u := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	tok := testutil.Token(t, cfg, u)

	status, _ := upload(t, app, tok, "virus.exe", []byte("MZ"), map[string]string{"title": "X"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = upload(t, app, tok, "buyuk.pdf", bytes.Repeat([]byte("a"), 64), map[string]string{"title": "X"})
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)

	status, _ = upload(t, app, tok, "basliksiz.pdf", []byte("%PDF"), nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env := upload(t, app, tok, "sahte.pdf", []byte("düz metin"), map[string]string{"title": "X"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, env.Message, "uyuşmuyor")

	status, _ = upload(t, app, tok, "resim.png", []byte("%PDF-1.4\n"), map[string]string{"title": "X"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = upload(t, app, tok, "yok.txt", []byte("metin"), map[string]string{"title": "X", "commission_id": "99"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
