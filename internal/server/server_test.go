package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQueue struct {
	mu        sync.Mutex
	jobs      map[string]async.Job
	submitted []async.File
	userID    string
	err       error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]async.Job{}}
}

func (q *fakeQueue) Submit(_ context.Context, files []async.File, userID string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.submitted = append(q.submitted, files...)
	q.userID = userID
	id := fmt.Sprintf("job_%d", len(q.jobs)+1)
	q.jobs[id] = async.Job{ID: id, Files: files, Status: constants.JobStatusPending}
	return id, nil
}

func (q *fakeQueue) Status(id string) (async.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	return j, ok
}

func (q *fakeQueue) Snapshot() async.QueueSnapshot {
	return async.QueueSnapshot{QueueLength: 2, IsProcessing: true, TotalJobsSeen: 7}
}

type fakeCache map[string]async.Job

func (c fakeCache) GetJob(_ context.Context, id string) (async.Job, error) {
	if j, ok := c[id]; ok {
		return j, nil
	}
	return async.Job{}, common.ErrJobNotFound
}

type fakeExporter struct {
	panics bool
}

func (e fakeExporter) ExportJobXLSX(_ context.Context, job async.Job) ([]byte, error) {
	if e.panics {
		panic("excel exploded")
	}
	return []byte("xlsx:" + job.ID), nil
}

type part struct {
	name string
	mime string
	body string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadField, p.name))
		h.Set("Content-Type", p.mime)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type harness struct {
	srv    *Server
	router *gin.Engine
	queue  *fakeQueue
	repo   *repository.MemoryRepository
	dir    string
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	if cfg.UploadDir == "" {
		cfg.UploadDir = t.TempDir()
	}
	q := newFakeQueue()
	repo := repository.NewMemoryRepository()
	opts = append([]Option{WithClock(func() time.Time { return time.UnixMilli(1710496800000) })}, opts...)
	srv := New(q, repo, fakeExporter{}, cfg, nil, opts...)
	return &harness{srv: srv, router: srv.Router(), queue: q, repo: repo, dir: cfg.UploadDir}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestVerifyDocuments(t *testing.T) {
	h := newHarness(t, Config{})
	body, ct := multipartBody(t,
		part{"cert.pdf", "application/pdf", "%PDF-1.4"},
		part{"foto.JPG", "image/jpeg", "jpegbytes"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/verify", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-ID", "user-7")

	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "job_1", out["jobId"])
	assert.Equal(t, float64(2), out["fileCount"])

	require.Len(t, h.queue.submitted, 2)
	assert.Equal(t, "user-7", h.queue.userID)
	f := h.queue.submitted[0]
	assert.Equal(t, "cert.pdf", f.OriginalName)
	assert.Equal(t, "1710496800000-cert.pdf", f.StoredName)
	assert.Equal(t, "application/pdf", f.MimeType)
	assert.Equal(t, int64(len("%PDF-1.4")), f.Size)

	raw, err := os.ReadFile(filepath.Join(h.dir, "1710496800000-foto.JPG"))
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(raw))
}

func TestVerifyDocuments_DuplicateNames(t *testing.T) {
	h := newHarness(t, Config{})
	body, ct := multipartBody(t,
		part{"cert.pdf", "application/pdf", "one"},
		part{"cert.pdf", "application/pdf", "two"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/verify", body)
	req.Header.Set("Content-Type", ct)

	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.queue.submitted, 2)
	assert.NotEqual(t, h.queue.submitted[0].StoredName, h.queue.submitted[1].StoredName)
}

func TestVerifyDocuments_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		parts []part
		code  string
	}{
		{"no files", Config{}, nil, "NO_FILES"},
		{"bad extension", Config{}, []part{{"cert.png", "image/jpeg", "x"}}, "INVALID_FILE_TYPE"},
		{"bad mime", Config{}, []part{{"cert.pdf", "text/plain", "x"}}, "INVALID_FILE_TYPE"},
		{"too large", Config{MaxFileSize: 4}, []part{{"cert.pdf", "application/pdf", "too many bytes"}}, "FILE_TOO_LARGE"},
		{"too many", Config{MaxFiles: 1}, []part{
			{"a.pdf", "application/pdf", "x"},
			{"b.pdf", "application/pdf", "y"},
		}, "TOO_MANY_FILES"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.cfg)
			body, ct := multipartBody(t, tc.parts...)
			req := httptest.NewRequest(http.MethodPost, "/api/documents/verify", body)
			req.Header.Set("Content-Type", ct)

			rec := h.do(req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, float64(http.StatusBadRequest), out["statusCode"])
			assert.Equal(t, tc.code, out["errorCode"])
			assert.Empty(t, h.queue.submitted)

			entries, err := os.ReadDir(h.dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestVerifyDocuments_QueueClosed(t *testing.T) {
	h := newHarness(t, Config{})
	h.queue.err = common.ErrQueueClosed
	body, ct := multipartBody(t, part{"cert.pdf", "application/pdf", "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/verify", body)
	req.Header.Set("Content-Type", ct)

	rec := h.do(req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploads are removed when the job is not accepted")
}

func TestGetJobStatus(t *testing.T) {
	h := newHarness(t, Config{})
	created := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	h.queue.jobs["job_9"] = async.Job{
		ID:             "job_9",
		Status:         constants.JobStatusProcessing,
		Files:          []async.File{{OriginalName: "a.pdf"}, {OriginalName: "b.pdf"}},
		Results:        []async.FileResult{{File: async.FileInfo{OriginalName: "a.pdf"}, Error: "boom"}},
		ProcessedFiles: 1,
		Progress:       50,
		CreatedAt:      created,
	}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/job_9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode(t, rec)["job"].(map[string]any)
	assert.Equal(t, "job_9", job["id"])
	assert.Equal(t, "processing", job["status"])
	assert.Equal(t, float64(2), job["filesCount"])
	assert.Equal(t, float64(2), job["totalFiles"])
	assert.Equal(t, float64(1), job["processedFiles"])
	assert.Equal(t, float64(50), job["progress"])
	assert.Len(t, job["results"], 1)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Trabajo no encontrado", decode(t, rec)["message"])
}

func TestGetJobStatus_CacheFallback(t *testing.T) {
	cached := async.Job{ID: "job_old", Status: constants.JobStatusCompleted, Progress: 100}
	h := newHarness(t, Config{}, WithJobCache(fakeCache{"job_old": cached}))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/job_old", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode(t, rec)["job"].(map[string]any)
	assert.Equal(t, "completed", job["status"])
	assert.Equal(t, []any{}, job["results"])

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func saveDoc(t *testing.T, repo *repository.MemoryRepository, jobID, userID string, at time.Time) {
	t.Helper()
	d := &repository.Document{
		JobID:           jobID,
		FileName:        "s.pdf",
		OriginalName:    "s.pdf",
		Status:          "valid",
		Confidence:      90,
		AnalysisDetails: json.RawMessage(`{}`),
		ExtractedData:   json.RawMessage(`{"fieldsPopulated":0}`),
		Issues:          json.RawMessage(`[]`),
		Summary:         "ok",
		CreatedAt:       at,
	}
	if userID != "" {
		d.UserID = &userID
	}
	_, err := repo.SaveDocument(context.Background(), d)
	require.NoError(t, err)
}

func TestGetDocumentsByJobID(t *testing.T) {
	h := newHarness(t, Config{})
	saveDoc(t, h.repo, "job_1", "", time.Now())
	saveDoc(t, h.repo, "job_1", "", time.Now())

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/job_1/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "job_1", data["jobId"])
	assert.Equal(t, float64(2), data["count"])

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/job_2/documents", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDocumentHistory(t *testing.T) {
	h := newHarness(t, Config{})
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		user := "user-7"
		if i%3 == 0 {
			user = "other"
		}
		saveDoc(t, h.repo, "job_1", user, base.Add(time.Duration(i)*time.Minute))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/history?page=2&limit=5", nil)
	req.Header.Set("X-User-ID", "user-7")
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	pg := data["pagination"].(map[string]any)
	assert.Equal(t, float64(8), pg["total"])
	assert.Equal(t, float64(2), pg["page"])
	assert.Equal(t, float64(5), pg["limit"])
	assert.Equal(t, float64(2), pg["totalPages"])
	assert.Len(t, data["documents"], 3)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/documents/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decode(t, rec)["data"].(map[string]any)
	pg = data["pagination"].(map[string]any)
	assert.Equal(t, float64(12), pg["total"])
	assert.Equal(t, float64(historyDefaultLimit), pg["limit"])
	assert.Len(t, data["documents"], historyDefaultLimit)
}

func TestGetAllDocuments(t *testing.T) {
	h := newHarness(t, Config{})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/documents?limit=abc&page=-3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	pg := data["pagination"].(map[string]any)
	assert.Equal(t, float64(repository.DefaultLimit), pg["limit"])
	assert.Equal(t, float64(1), pg["page"])
	assert.Equal(t, float64(0), pg["totalPages"])
	assert.Equal(t, []any{}, data["documents"])
}

func TestExportJob(t *testing.T) {
	h := newHarness(t, Config{})
	h.queue.jobs["job_3"] = async.Job{ID: "job_3", Status: constants.JobStatusCompleted}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/job_3/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "verificacion-job_3.xlsx")
	assert.Equal(t, "xlsx:job_3", rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/documents/jobs/none/export", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryAndRequestID(t *testing.T) {
	q := newFakeQueue()
	q.jobs["job_p"] = async.Job{ID: "job_p"}
	srv := New(q, repository.NewMemoryRepository(), fakeExporter{panics: true}, Config{UploadDir: t.TempDir()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/jobs/job_p/export", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec)["errorCode"])
}

func TestRequestIDGenerated(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)

	queue := decode(t, rec)["queue"].(map[string]any)
	assert.Equal(t, float64(2), queue["queueLength"])
	assert.Equal(t, true, queue["isProcessing"])
	assert.Equal(t, float64(7), queue["totalJobsSeen"])
}

func TestSupportedTypesAndNoRoute(t *testing.T) {
	h := newHarness(t, Config{})
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/documents/supported-types", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "10MB", out["maxFileSize"])
	assert.Equal(t, float64(5), out["maxFiles"])

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewHealthServer(t *testing.T) {
	gs, hs := NewHealthServer()
	require.NotNil(t, gs)
	require.NotNil(t, hs)
	gs.Stop()
}
