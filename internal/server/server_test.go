package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quiz-report/internal/config"
	"quiz-report/internal/domain"
	"quiz-report/internal/infrastructure/asset"
	"quiz-report/internal/infrastructure/pdf"
	"quiz-report/internal/infrastructure/repo"
	"quiz-report/internal/infrastructure/webhook"
	"quiz-report/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	srv     *Server
	outDir  string
	records *repo.MemoryRecordRepo
	logs    *observer.ObservedLogs
}

func newEnv(t *testing.T, cfg config.Config) *env {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)
	out := t.TempDir()
	records := repo.NewMemoryRecordRepo()
	files := asset.NewFSWriter(out)
	gen := &usecase.GenerationService{
		Renderer:   pdf.NewFPDFRenderer(log),
		Reports:    files,
		Images:     asset.NewArchetypeImages(t.TempDir()),
		Records:    records,
		Notifier:   &usecase.WebhookNotifier{Poster: &webhook.Client{Timeout: time.Second}, Logger: log, Retry: 3, Sleep: func(time.Duration) {}},
		Logger:     log,
		MaxRetries: 3,
		Sleep:      func(time.Duration) {},
	}
	srv := New(cfg, Deps{
		Generator: gen,
		History:   &usecase.HistoryService{Repo: records},
		Files:     files,
		Logger:    log,
	})
	return &env{srv: srv, outDir: out, records: records, logs: logs}
}

func (e *env) do(method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) domain.GenerationResult {
	t.Helper()
	var res domain.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestGeneratePDF_Success(t *testing.T) {
	e := newEnv(t, config.Default())
	body := []byte(`{"user_name":"Alice","score":87,"archetype":"Night Owl","description":"You thrive after dark."}`)

	w := e.do(http.MethodPost, "/generate-pdf", "application/json", body)

	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, w)
	assert.Equal(t, "Alice", res.UserName)
	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
	require.NotNil(t, res.FilePath)
	assert.True(t, strings.HasPrefix(filepath.Base(*res.FilePath), "Alice_Night_Owl_"))
	assert.Contains(t, w.Body.String(), `"error":null`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	raw, err := os.ReadFile(*res.FilePath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))
}

func TestGeneratePDF_IgnoresContentType(t *testing.T) {
	e := newEnv(t, config.Default())
	body := []byte(`{"user_name":"Bob","score":"A+","archetype":"Early Bird"}`)

	w := e.do(http.MethodPost, "/generate-pdf", "text/plain", body)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGeneratePDF_MissingFields(t *testing.T) {
	e := newEnv(t, config.Default())
	body := []byte(`{"user_name":"Alice","score":null,"archetype":"Night Owl","webhook_url":"http://127.0.0.1:1/hook"}`)

	w := e.do(http.MethodPost, "/generate-pdf", "application/json", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	res := decodeResult(t, w)
	assert.False(t, res.Success)
	assert.Nil(t, res.FilePath)
	require.NotNil(t, res.Error)
	assert.Equal(t, "user_name, score and archetype are required", *res.Error)

	entries, err := os.ReadDir(e.outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, e.logs.FilterMessage("Webhook attempt failed").Len())
}

func TestGeneratePDF_MalformedBody(t *testing.T) {
	e := newEnv(t, config.Default())
	for _, body := range []string{"", "{not json", `["a"]`} {
		w := e.do(http.MethodPost, "/generate-pdf", "application/json", []byte(body))
		require.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		res := decodeResult(t, w)
		require.NotNil(t, res.Error)
		assert.Equal(t, msgMalformedBody, *res.Error)
	}
}

type ctxProbe struct {
	err error
}

func (p *ctxProbe) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, int) {
	p.err = ctx.Err()
	return domain.Failed(req.UserName, "exhausted"), http.StatusInternalServerError
}

func TestGeneratePDF_DetachedFromClientCancel(t *testing.T) {
	probe := &ctxProbe{}
	srv := New(config.Default(), Deps{Generator: probe})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/generate-pdf",
		strings.NewReader(`{"user_name":"Alice","score":1,"archetype":"X"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.NoError(t, probe.err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Webhook.Secret = "s3cret"
	e := newEnv(t, cfg)

	body := []byte(`{"user_name":"Alice","success":true}`)
	sig, err := webhook.Sign("s3cret", body, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook-status", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, sig)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	got := e.logs.FilterMessage("Webhook received").All()
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0].ContextMap()["signature_valid"])
	assert.Equal(t, string(body), got[0].ContextMap()["payload"])

	w = e.do(http.MethodPost, "/webhook-status", "application/json", []byte("nope"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerated_ServesFile(t *testing.T) {
	e := newEnv(t, config.Default())
	require.NoError(t, os.WriteFile(filepath.Join(e.outDir, "Alice_Night_Owl_1.pdf"), []byte("%PDF-1.3 x"), 0o644))

	w := e.do(http.MethodGet, "/generated/Alice_Night_Owl_1.pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.3 x", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestGenerated_DownloadsReportWithDotsInName(t *testing.T) {
	e := newEnv(t, config.Default())
	w := e.do(http.MethodPost, "/generate-pdf", "application/json",
		[]byte(`{"user_name":"J..Doe","score":87,"archetype":"Night Owl"}`))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, w)
	require.NotNil(t, res.FilePath)
	name := filepath.Base(*res.FilePath)
	require.True(t, strings.HasPrefix(name, "J..Doe_Night_Owl_"), name)

	w = e.do(http.MethodGet, "/generated/"+name, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
}

func TestGenerated_NotFound(t *testing.T) {
	e := newEnv(t, config.Default())
	for _, target := range []string{"/generated/missing.pdf", "/generated/", "/generated/a/b.pdf"} {
		w := e.do(http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
	}

	w := e.do(http.MethodGet, "/generated/missing.pdf", "", nil)
	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NotFound", body.Error.Code)
	assert.Equal(t, w.Header().Get(RequestIDHeader), body.Error.RequestID)
}

func TestGenerations_History(t *testing.T) {
	e := newEnv(t, config.Default())
	w := e.do(http.MethodPost, "/generate-pdf", "application/json",
		[]byte(`{"user_name":"Alice","score":87,"archetype":"Night Owl"}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/generations?page=1&pageSize=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []domain.GenerationRecord `json:"items"`
		Total int                       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, domain.StatusDone, list.Items[0].Status)

	w = e.do(http.MethodGet, "/generations/"+list.Items[0].ID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/generations/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerations_ReportsClampedPaging(t *testing.T) {
	e := newEnv(t, config.Default())

	w := e.do(http.MethodGet, "/generations?page=0&pageSize=1000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0,"page":1,"pageSize":100}`, w.Body.String())
}

type unavailableHistory struct{}

func (unavailableHistory) Get(string) (*domain.GenerationRecord, error) {
	return nil, errors.New("connection refused")
}

func (unavailableHistory) List(int, int) (usecase.HistoryPage, error) {
	return usecase.HistoryPage{}, errors.New("connection refused")
}

func TestGenerations_StoreFailureIsServerError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := New(config.Default(), Deps{History: unavailableHistory{}, Logger: zap.New(core)})

	for _, target := range []string{"/generations", "/generations/abc"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, target)
	}
	assert.Equal(t, 2, logs.FilterMessage("request failed").Len())
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, config.Default())
	w := e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quiz_report_http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := newEnv(t, config.Default())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
