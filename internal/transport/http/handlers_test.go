package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskdash/internal/cache"
	"riskdash/internal/config"
	"riskdash/internal/detect"
	apierrors "riskdash/internal/errors"
	"riskdash/internal/exporter"
	"riskdash/internal/files"
	"riskdash/internal/loader"
	"riskdash/internal/middleware"
	"riskdash/internal/pages"
	"riskdash/internal/schema"
	"riskdash/internal/services"
	"riskdash/internal/shared/testutil"
	"riskdash/internal/store"
	ws "riskdash/internal/websocket"
	api "riskdash/pkg/contracts/api/v1"
	"riskdash/pkg/contracts/events"
)

const riskSlot = "risk_metrics_timeseries"

type testServer struct {
	router http.Handler
	hub    *ws.Hub
	store  *store.MemoryStore
}

func newTestServer(t *testing.T, maxUploadBytes int64) *testServer {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	paths := config.NewPaths(t.TempDir(), config.PathsConfig{})
	require.NoError(t, paths.EnsureDirectories())

	uploadCache := cache.NewUploadCache(time.Minute, 16)
	t.Cleanup(uploadCache.Stop)

	hub := ws.NewHub(logger, 30*time.Second, time.Minute)
	hub.Start()
	t.Cleanup(hub.Stop)

	st := store.NewMemoryStore()
	svc, err := services.NewIngestService(services.IngestDeps{
		Loader:  loader.NewLoader(detect.NewEngine(schema.Default(), logger, 0), logger, 2),
		Catalog: pages.DefaultCatalog(),
		Cache:   uploadCache,
		Files:   files.NewManager(paths, logger),
		Store:   st,
		Events:  hub,
		Logger:  logger,
	})
	require.NoError(t, err)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	validator := middleware.NewValidationMiddleware(logger, errorHandler, 0)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/ws", NewWebSocketHandler(hub, []string{"http://localhost:3000"}, 1024, 1024, logger, errorHandler).ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		NewHealthHandler(services.NewHealthService("test", paths, st, hub, logger), logger).Routes(r)
		r.Mount("/schemas", NewSchemaHandler(svc, validator, logger, errorHandler).Routes())
		r.Mount("/ingest", NewIngestHandler(svc, validator, maxUploadBytes, logger, errorHandler).Routes())
		r.Mount("/pages", NewPagesHandler(svc, validator, maxUploadBytes, logger, errorHandler).Routes())
	})

	return &testServer{router: r, hub: hub, store: st}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type part struct {
	field   string
	name    string
	content []byte
}

func multipartRequest(t *testing.T, method, target string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestSchemaHandler(t *testing.T) {
	s := newTestServer(t, 1<<20)

	t.Run("list", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.SchemaListResponse
		decode(t, rec, &resp)
		assert.Equal(t, len(schema.Default().Keys()), resp.Count)
		assert.Len(t, resp.Schemas, resp.Count)
	})

	t.Run("get", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/schemas/"+schema.InstrumentReference, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.SchemaResponse
		decode(t, rec, &resp)
		assert.Equal(t, schema.InstrumentReference, resp.Key)
		assert.NotEmpty(t, resp.RequiredFields)
		assert.NotEmpty(t, resp.Fields)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/schemas/nope", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)

		var problem map[string]interface{}
		decode(t, rec, &problem)
		assert.Equal(t, "DATASET_NOT_FOUND", problem["error_code"])
		assert.Contains(t, problem["detail"], "nope")
	})

	t.Run("match", func(t *testing.T) {
		body := `{"columns":["Instrument Identifier","Reporting Date"],"expectation":{"name":"ids","candidates":["instrumentIdentifier","portfolioIdentifier"],"required":true,"match":"all"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/schemas/"+schema.InstrumentReference+"/match", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := s.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp api.MatchResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Instrument Identifier", resp.Selected["instrumentIdentifier"])
		assert.Equal(t, []string{"portfolioIdentifier"}, resp.Missing)
	})

	t.Run("match without columns", func(t *testing.T) {
		body := `{"columns":[],"expectation":{"name":"ids","candidates":["instrumentIdentifier"]}}`
		req := httptest.NewRequest(http.MethodPost, "/api/schemas/"+schema.InstrumentReference+"/match", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := s.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestIngestHandler_Detect(t *testing.T) {
	s := newTestServer(t, 1<<20)

	req := multipartRequest(t, http.MethodPost, "/api/ingest/detect",
		part{"files", "reference.csv", testutil.ReferenceCSV()},
		part{"files", "empty.csv", nil},
		part{"files", `C:\exports\notes.csv`, testutil.CSV([]string{"foo", "bar"}, []string{"1", "2"})},
	)
	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.DetectResponse
	decode(t, rec, &resp)
	assert.Equal(t, []string{schema.InstrumentReference}, resp.Order)
	assert.Equal(t, []string{"reference.csv"}, resp.Groups[schema.InstrumentReference])

	require.Len(t, resp.Files, 3)
	assert.Equal(t, api.FileStatusDetected, resp.Files[0].Status)
	assert.Equal(t, schema.InstrumentReference, resp.Files[0].DatasetKey)
	assert.Equal(t, api.FileStatusSkipped, resp.Files[1].Status)
	assert.Equal(t, "notes.csv", resp.Files[2].FileName)
	assert.Equal(t, api.FileStatusRejected, resp.Files[2].Status)
	assert.NotEmpty(t, resp.Files[2].Error)
}

func TestIngestHandler_DetectErrors(t *testing.T) {
	tests := []struct {
		name       string
		maxBytes   int64
		request    func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name:     "no files",
			maxBytes: 1 << 20,
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/ingest/detect")
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:     "not multipart",
			maxBytes: 1 << 20,
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/ingest/detect", strings.NewReader("{}"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:     "oversized body",
			maxBytes: 512,
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/ingest/detect",
					part{"files", "big.csv", bytes.Repeat([]byte("a,b\n"), 1024)})
			},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:     "bad file name",
			maxBytes: 1 << 20,
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/ingest/detect",
					part{"files", "..", testutil.ReferenceCSV()})
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.maxBytes)
			rec := s.do(t, tt.request(t))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var problem map[string]interface{}
			decode(t, rec, &problem)
			assert.EqualValues(t, tt.wantStatus, problem["status"])
		})
	}
}

func TestPagesHandler_Catalog(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/pages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list api.PageListResponse
	decode(t, rec, &list)
	require.Equal(t, len(pages.DefaultCatalog().Pages()), list.Count)

	byKey := make(map[string]api.PageSummary)
	for _, p := range list.Pages {
		byKey[p.Key] = p
	}
	assert.True(t, byKey[pages.Backtest].UnderConstruction)
	assert.Equal(t, 2, byKey[pages.MacroLinkage].Inputs)
	assert.Equal(t, 2, byKey[pages.MacroLinkage].RequiredInputs)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{"unknown page", "/api/pages/nope", http.StatusNotFound, "PAGE_NOT_FOUND"},
		{"unknown slot", "/api/pages/macro_linkage/inputs/nope/export", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, tt.wantStatus, rec.Code)
			var problem map[string]interface{}
			decode(t, rec, &problem)
			assert.Equal(t, tt.wantCode, problem["error_code"])
		})
	}
}

func TestPagesHandler_InputLifecycle(t *testing.T) {
	s := newTestServer(t, 1<<20)
	base := "/api/pages/" + pages.MacroLinkage

	rec := s.do(t, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page PageResponse
	decode(t, rec, &page)
	assert.False(t, page.Ready)
	assert.Len(t, page.MissingRequiredFiles, 2)
	assert.NotNil(t, page.MissingRequiredHeaders)

	// Export before upload is a validation failure
	rec = s.do(t, httptest.NewRequest(http.MethodGet, base+"/inputs/"+riskSlot+"/export", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, multipartRequest(t, http.MethodPost, base+"/inputs/"+riskSlot,
		part{"file", "pd_history.csv", testutil.RiskMetricCSV("2023-03-31", "2024-06-30", "2025-06-30")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var status pages.InputStatus
	decode(t, rec, &status)
	assert.Equal(t, schema.InstrumentRiskMetric, status.DatasetKey)
	assert.Equal(t, "pd_history.csv", status.UploadedFile)
	assert.Equal(t, 3, status.RowCount)
	assert.Empty(t, status.Errors)
	assert.Equal(t, "instrumentIdentifier", status.SelectedColumns["instrumentIdentifier"])

	rec = s.do(t, httptest.NewRequest(http.MethodGet, base+"/readiness", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var readiness pages.Readiness
	decode(t, rec, &readiness)
	assert.False(t, readiness.Ready)
	assert.False(t, readiness.InputsComplete)

	t.Run("export csv", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, base+"/inputs/"+riskSlot+"/export", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, exporter.FormatCSV.ContentType(), rec.Header().Get("Content-Type"))
		assert.Equal(t,
			`attachment; filename="`+services.ExportFileName(pages.MacroLinkage, riskSlot, exporter.FormatCSV)+`"`,
			rec.Header().Get("Content-Disposition"))
		assert.Contains(t, rec.Body.String(), "instrumentIdentifier")
		assert.Contains(t, rec.Body.String(), "2025-06-30")
	})

	t.Run("export xlsx", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, base+"/inputs/"+riskSlot+"/export?format=XLSX", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, exporter.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
	})

	t.Run("export unknown format", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, base+"/inputs/"+riskSlot+"/export?format=pdf", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, base+"/inputs/"+riskSlot, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, base+"/inputs/"+riskSlot+"/export", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPagesHandler_UploadWrongDataset(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/pages/macro_linkage/inputs/"+riskSlot,
		part{"file", "reference.csv", testutil.ReferenceCSV()}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var status pages.InputStatus
	decode(t, rec, &status)
	assert.Equal(t, "reference.csv", status.UploadedFile)
	assert.NotEmpty(t, status.Errors)
}

func TestPagesHandler_UploadRequiresOneFile(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/pages/macro_linkage/inputs/"+riskSlot,
		part{"file", "a.csv", testutil.ReferenceCSV()},
		part{"file", "b.csv", testutil.ReferenceCSV()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, 1<<20)

	tests := []struct {
		target     string
		wantStatus string
	}{
		{"/api/health", services.StatusOK},
		{"/api/health/ready", services.StatusReady},
		{"/api/health/live", services.StatusAlive},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := s.do(t, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			var status services.HealthStatus
			decode(t, rec, &status)
			assert.Equal(t, tt.wantStatus, status.Status)
		})
	}

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var version map[string]interface{}
	decode(t, rec, &version)
	assert.Equal(t, "test", version["version"])
}

func TestWebSocketHandler(t *testing.T) {
	s := newTestServer(t, 1<<20)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Run("rejects foreign origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("streams ingest events", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://localhost:3000"}}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		var msg events.WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, events.MessageTypeConnect, msg.Type)

		req := multipartRequest(t, http.MethodPost, srv.URL+"/api/pages/macro_linkage/inputs/"+riskSlot,
			part{"file", "pd.csv", testutil.RiskMetricCSV("2023-03-31", "2025-06-30")})
		req.RequestURI = ""
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		seen := make(map[events.MessageType]bool)
		for !seen[events.MessageTypeFileDetected] || !seen[events.MessageTypePageReadiness] {
			var next events.WebSocketMessage
			require.NoError(t, conn.ReadJSON(&next))
			seen[next.Type] = true
		}
	})
}

func TestHealthHandler_NotReady(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	r := chi.NewRouter()
	NewHealthHandler(services.NewHealthService("test", nil, nil, nil, logger), logger).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status services.HealthStatus
	decode(t, rec, &status)
	assert.Equal(t, services.StatusNotReady, status.Status)
	assert.Equal(t, services.StatusNotReady, status.Services["store"].Status)
}
