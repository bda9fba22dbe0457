package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/documents"
	"dealflow-backend/internal/extractions"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *extractions.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, extRepo := newTestService(t)
	router := gin.New()
	NewHandler(svc, extRepo, 1<<20).RegisterRoutes(router.Group(""))
	return router, svc, extRepo
}

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadReturnsJobID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "offering-memo.pdf", []byte("%PDF-1.4 stub"))
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.JobID == "" {
		t.Fatal("expected job_id, got empty")
	}
}

func TestUploadMissingFileRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestUploadUnsupportedTypeRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUploadOversizeRejected(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// Router is built with a 1MB cap; this body is well past it.
	body, contentType := multipartUpload(t, "bloated-memo.pdf", bytes.Repeat([]byte("x"), 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListDocuments(t *testing.T) {
	router, svc, _ := newTestRouter(t)

	base := time.Now().UTC()
	older := documents.Document{ID: "doc-1", FileName: "older.pdf", MimeType: "application/pdf", CreatedAt: base.Add(-time.Hour)}
	newer := documents.Document{ID: "doc-2", FileName: "newer.pdf", MimeType: "application/pdf", CreatedAt: base}
	for _, doc := range []documents.Document{older, newer} {
		if err := svc.Docs.Create(context.Background(), doc); err != nil {
			t.Fatalf("create document: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got []struct {
		ID       string `json:"id"`
		FileName string `json:"fileName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].ID != "doc-2" || got[1].ID != "doc-1" {
		t.Fatalf("expected newest-first [doc-2 doc-1], got %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents?limit=1", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	got = nil
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "doc-2" {
		t.Fatalf("expected [doc-2], got %+v", got)
	}
}

func TestEntitiesNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/documents/no-such-doc/entities", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestEntitiesReturnsStoredExtraction(t *testing.T) {
	router, _, extRepo := newTestRouter(t)

	ext := extractions.Extraction{
		DocumentID:   "doc-42",
		DocumentType: extractions.DocTypeTTMStatement,
		CreatedAt:    time.Now().UTC(),
	}
	if err := extRepo.Put(context.Background(), ext); err != nil {
		t.Fatalf("put extraction: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-42/entities", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var got struct {
		DocumentID   string `json:"document_id"`
		DocumentType string `json:"document_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.DocumentID != "doc-42" || got.DocumentType != extractions.DocTypeTTMStatement {
		t.Fatalf("unexpected payload: %+v", got)
	}
}
