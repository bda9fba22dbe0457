package pipeline_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dealflow-backend/internal/bootstrap"
	"dealflow-backend/internal/shared/config"
)

func buildTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:             "0",
		Env:              "dev",
		CORSAllowOrigin:  []string{"http://localhost:5173"},
		LocalStoreDir:    t.TempDir(),
		MaxUploadBytes:   1 << 20,
		RunePollAttempts: 50,
		RunePollInterval: 10 * time.Millisecond,
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func uploadRequest(t *testing.T, path, fileName string, content []byte) *http.Request {
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
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

type runeStatus struct {
	State    string  `json:"state"`
	Progress int     `json:"progress"`
	DocID    string  `json:"docId"`
	DealID   string  `json:"dealId"`
	DQI      *int    `json:"dqi"`
	Error    *string `json:"error"`
}

func pollRuneJob(t *testing.T, router *gin.Engine, jobID string) runeStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/rune/jobs/"+jobID, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("status poll returned %d: %s", resp.Code, resp.Body.String())
		}
		var status runeStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.State == "complete" || status.State == "error" {
			return status
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("rune job never reached a terminal state")
	return runeStatus{}
}

func TestRuneIntakeEndToEndHTTP(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	req := uploadRequest(t, "/rune/intake", "harbor-point-offering.pdf", []byte("%PDF-1.4 stub"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var accepted struct {
		RuneJobID string `json:"rune_job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.RuneJobID == "" {
		t.Fatal("expected rune_job_id")
	}

	status := pollRuneJob(t, router, accepted.RuneJobID)
	if status.State != "complete" {
		t.Fatalf("expected complete, got %q (error=%v)", status.State, status.Error)
	}
	if status.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", status.Progress)
	}
	if status.DocID == "" || status.DealID == "" {
		t.Fatalf("expected doc and deal linkage, got %+v", status)
	}
	if status.DQI == nil || *status.DQI < 0 || *status.DQI > 100 {
		t.Fatalf("expected dqi in [0,100], got %v", status.DQI)
	}

	// The deal is readable and consistent with the job.
	dealReq := httptest.NewRequest(http.MethodGet, "/deals/"+status.DealID, nil)
	dealResp := httptest.NewRecorder()
	router.ServeHTTP(dealResp, dealReq)
	if dealResp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for deal, got %d", dealResp.Code)
	}
	var deal struct {
		ID          string  `json:"id"`
		Stage       string  `json:"stage"`
		DQI         int     `json:"dqi"`
		TargetRaise float64 `json:"targetRaise"`
		Summary     struct {
			NOI *float64 `json:"noi"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(dealResp.Body).Decode(&deal); err != nil {
		t.Fatalf("decode deal: %v", err)
	}
	if deal.Stage != "Draft" {
		t.Fatalf("expected stage Draft, got %q", deal.Stage)
	}
	if deal.DQI != *status.DQI {
		t.Fatalf("deal dqi %d does not match job dqi %d", deal.DQI, *status.DQI)
	}
	if deal.Summary.NOI == nil {
		t.Fatal("expected mapped NOI on deal summary")
	}
	if want := *deal.Summary.NOI * 10; deal.TargetRaise != want {
		t.Fatalf("expected target raise %v, got %v", want, deal.TargetRaise)
	}

	// The extraction is readable through the entities route.
	entReq := httptest.NewRequest(http.MethodGet, "/documents/"+status.DocID+"/entities", nil)
	entResp := httptest.NewRecorder()
	router.ServeHTTP(entResp, entReq)
	if entResp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for entities, got %d", entResp.Code)
	}

	// Deal listing includes the new deal.
	listReq := httptest.NewRequest(http.MethodGet, "/deals", nil)
	listResp := httptest.NewRecorder()
	router.ServeHTTP(listResp, listReq)
	if listResp.Code != http.StatusOK {
		t.Fatalf("expected status 200 for deal list, got %d", listResp.Code)
	}
	var dealList []json.RawMessage
	if err := json.NewDecoder(listResp.Body).Decode(&dealList); err != nil {
		t.Fatalf("decode deal list: %v", err)
	}
	if len(dealList) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(dealList))
	}
}

func TestRuneJobUnknownID(t *testing.T) {
	app := buildTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/rune/jobs/does-not-exist", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestIntakeJobStatusHTTP(t *testing.T) {
	app := buildTestApp(t)
	router := app.Router

	req := uploadRequest(t, "/documents/upload", "ttm-statement.pdf", []byte("%PDF-1.4 stub"))
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

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		statusReq := httptest.NewRequest(http.MethodGet, "/jobs/"+accepted.JobID+"/status", nil)
		statusResp := httptest.NewRecorder()
		router.ServeHTTP(statusResp, statusReq)
		if statusResp.Code != http.StatusOK {
			t.Fatalf("status poll returned %d", statusResp.Code)
		}
		var status struct {
			State    string `json:"state"`
			Progress int    `json:"progress"`
			DocID    string `json:"doc_id"`
		}
		if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.State == "complete" {
			if status.DocID == "" {
				t.Fatal("expected doc_id on completed intake job")
			}
			return
		}
		if status.State == "error" {
			t.Fatalf("intake job failed: %+v", status)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("intake job never completed")
}
