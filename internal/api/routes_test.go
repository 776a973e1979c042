package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/sentryscan/internal/ingest"
	"github.com/rawblock/sentryscan/internal/store"
	"github.com/rawblock/sentryscan/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScanner struct {
	result ingest.Result
	err    error
}

func (f *fakeScanner) Scan(context.Context, string, string) (ingest.Result, error) {
	return f.result, f.err
}

type fakeJobReader struct {
	job           models.Job
	getJobErr     error
	counts        models.StatusCounts
	findingsCount int
	findings      []models.Finding
	deleteErr     error
}

func (f *fakeJobReader) GetJob(context.Context, string) (models.Job, error) {
	return f.job, f.getJobErr
}
func (f *fakeJobReader) CountObjectsByStatus(context.Context, string) (models.StatusCounts, error) {
	return f.counts, nil
}
func (f *fakeJobReader) CountFindings(context.Context, string) (int, error) {
	return f.findingsCount, nil
}
func (f *fakeJobReader) ListFindings(context.Context, string, string, int, int64) ([]models.Finding, error) {
	return f.findings, nil
}
func (f *fakeJobReader) DeleteJob(context.Context, string) error {
	return f.deleteErr
}

func newTestRouter(s *fakeScanner, j *fakeJobReader) *gin.Engine {
	return SetupRouter(j, s, NewHub())
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&fakeScanner{}, &fakeJobReader{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCreateScanRejectsMissingBucket(t *testing.T) {
	r := newTestRouter(&fakeScanner{}, &fakeJobReader{})
	body, _ := json.Marshal(map[string]string{"prefix": "logs/"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateScanSucceeds(t *testing.T) {
	scan := &fakeScanner{result: ingest.Result{JobID: "11111111-1111-1111-1111-111111111111", ObjectCount: 5, EnqueuedCount: 5}}
	r := newTestRouter(scan, &fakeJobReader{})
	body, _ := json.Marshal(map[string]string{"bucket": "my-bucket"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["job_id"] != scan.result.JobID {
		t.Errorf("job_id = %v, want %v", resp["job_id"], scan.result.JobID)
	}
}

func TestGetJobRejectsInvalidUUID(t *testing.T) {
	r := newTestRouter(&fakeScanner{}, &fakeJobReader{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetJobReturnsNotFound(t *testing.T) {
	j := &fakeJobReader{getJobErr: store.ErrNotFound}
	r := newTestRouter(&fakeScanner{}, j)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/11111111-1111-1111-1111-111111111111", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetJobReturnsDerivedStatus(t *testing.T) {
	j := &fakeJobReader{
		job:           models.Job{JobID: "11111111-1111-1111-1111-111111111111", Bucket: "b", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		counts:        models.StatusCounts{Succeeded: 3},
		findingsCount: 7,
	}
	r := newTestRouter(&fakeScanner{}, j)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/11111111-1111-1111-1111-111111111111", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "completed" {
		t.Errorf("status = %v, want completed", resp["status"])
	}
	if resp["findings_count"].(float64) != 7 {
		t.Errorf("findings_count = %v, want 7", resp["findings_count"])
	}
}

func TestListFindingsRejectsLimitOutOfRange(t *testing.T) {
	r := newTestRouter(&fakeScanner{}, &fakeJobReader{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/findings?limit=0", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListFindingsSetsNextCursorWhenPageFull(t *testing.T) {
	findings := make([]models.Finding, 2)
	findings[0] = models.Finding{ID: 10}
	findings[1] = models.Finding{ID: 11}
	j := &fakeJobReader{findings: findings}
	r := newTestRouter(&fakeScanner{}, j)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/findings?limit=2", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["next_cursor"].(float64) != 11 {
		t.Errorf("next_cursor = %v, want 11", resp["next_cursor"])
	}
}

func TestListFindingsNextCursorNilWhenPageShort(t *testing.T) {
	j := &fakeJobReader{findings: []models.Finding{{ID: 1}}}
	r := newTestRouter(&fakeScanner{}, j)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/findings?limit=50", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["next_cursor"] != nil {
		t.Errorf("next_cursor = %v, want nil", resp["next_cursor"])
	}
}

func TestDeleteJobReturnsNotFound(t *testing.T) {
	j := &fakeJobReader{deleteErr: store.ErrNotFound}
	r := newTestRouter(&fakeScanner{}, j)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/11111111-1111-1111-1111-111111111111", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
