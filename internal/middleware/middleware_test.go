package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apierrors "riskdash/internal/errors"
	"riskdash/internal/infrastructure"
	"riskdash/internal/shared/testutil"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen, traceID string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetReqID(r.Context())
				traceID = infrastructure.GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			assert.Equal(t, seen, traceID)
			if tt.incoming != "" {
				assert.Equal(t, tt.incoming, seen)
			}
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(okHandler)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, handler.ContainsMessage("request completed"))
	assert.True(t, handler.ContainsAttr("path", "/api/pages"))
}

func TestRecoverer(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := RequestID(Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/explode", nil)
	req.Header.Set(RequestIDHeader, "trace-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, apierrors.TypeInternal, body["type"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.True(t, handler.ContainsMessage("panic recovered"))
}

func TestRateLimiter(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.001, 2, logger)
	h := rl.Handler(http.HandlerFunc(okHandler))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	// Buckets are per client
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
	assert.True(t, handler.ContainsMessage("rate limit exceeded"))

	probe := httptest.NewRequest(http.MethodGet, "/api/health/live", nil)
	probe.RemoteAddr = "10.0.0.1:1003"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, probe)
	assert.Equal(t, http.StatusOK, rec.Code, "health probes bypass the limiter")
}

func TestTimeout(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	t.Run("handler honors deadline", func(t *testing.T) {
		h := Timeout(10*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Equal(t, apierrors.TypeTimeout, decodeProblem(t, rec)["type"])
		assert.True(t, handler.ContainsMessage("request timeout"))
	})

	t.Run("fast handler untouched", func(t *testing.T) {
		h := Timeout(time.Second, logger)(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(http.HandlerFunc(okHandler))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", http.MethodGet, "http://localhost:3000", "http://localhost:3000", http.StatusOK},
		{"foreign origin", http.MethodGet, "http://evil.example", "", http.StatusOK},
		{"preflight", http.MethodOptions, "http://localhost:3000", "http://localhost:3000", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/pages", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "http://any"))
	assert.True(t, OriginAllowed([]string{"*"}, "http://any"))
	assert.True(t, OriginAllowed([]string{"HTTP://LOCALHOST:8080"}, "http://localhost:8080"))
	assert.False(t, OriginAllowed([]string{"http://localhost:8080"}, "http://other"))
}

func TestSecurityHeadersAndAudit(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := SecurityHeaders(AuditLog(logger)(http.HandlerFunc(okHandler)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.False(t, handler.ContainsMessage("audit log"), "reads are not audited")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/pages/macro_linkage/inputs/risk_metric", nil))
	assert.True(t, handler.ContainsMessage("audit log"))
	assert.True(t, handler.ContainsAttr("method", http.MethodDelete))
}

func TestAuditLog_SlotParams(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	r := chi.NewRouter()
	r.Use(AuditLog(logger))
	r.Delete("/api/pages/{page}/inputs/{slot}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/pages/macro_linkage/inputs/reference_enrichment", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	testutil.AssertLogAttr(t, handler, "page", "macro_linkage")
	testutil.AssertLogAttr(t, handler, "slot", "reference_enrichment")
	testutil.AssertLogAttr(t, handler, "status", int64(http.StatusNoContent))
	testutil.AssertLogAttr(t, handler, "component", "audit")
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5", "1.2.3.4"},
		{"remote without port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealIP(req))
		})
	}
}

type matchBody struct {
	Columns []string `json:"columns" validate:"required,min=1"`
	Name    string   `json:"name" validate:"omitempty,filename"`
}

func TestValidationMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	vm := NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false), 64)

	t.Run("decode and validate", func(t *testing.T) {
		tests := []struct {
			name       string
			body       string
			wantOK     bool
			wantStatus int
		}{
			{"valid", `{"columns":["a"],"name":"loans.csv"}`, true, http.StatusOK},
			{"missing columns", `{"columns":[]}`, false, http.StatusBadRequest},
			{"traversal", `{"columns":["a"],"name":"../x.csv"}`, false, http.StatusBadRequest},
			{"not json", `{`, false, http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
				rec := httptest.NewRecorder()
				var v matchBody
				ok := vm.DecodeJSON(rec, req, &v)
				assert.Equal(t, tt.wantOK, ok)
				if !ok {
					assert.Equal(t, tt.wantStatus, rec.Code)
				}
			})
		}
	})

	t.Run("body checks", func(t *testing.T) {
		h := vm.ValidateRequest(http.HandlerFunc(okHandler))

		tests := []struct {
			name        string
			contentType string
			body        string
			wantStatus  int
		}{
			{"valid json", "application/json", `{"a":1}`, http.StatusOK},
			{"invalid json", "application/json", `{"a":`, http.StatusBadRequest},
			{"too large", "application/json", `{"a":"` + strings.Repeat("x", 100) + `"}`, http.StatusRequestEntityTooLarge},
			{"multipart skipped", "multipart/form-data; boundary=x", `{"a":`, http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
				req.Header.Set("Content-Type", tt.contentType)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, tt.wantStatus, rec.Code)
			})
		}
	})

	t.Run("single value", func(t *testing.T) {
		assert.NoError(t, vm.ValidateVar("file", "loans.xlsx", "filename"))
		assert.Error(t, vm.ValidateVar("file", `..\loans.csv`, "filename"))
	})
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("multipart/form-data")(http.HandlerFunc(okHandler))

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"multipart", http.MethodPost, "multipart/form-data; boundary=abc", http.StatusOK},
		{"json", http.MethodPost, "application/json", http.StatusUnsupportedMediaType},
		{"missing", http.MethodPost, "", http.StatusBadRequest},
		{"delete ignored", http.MethodDelete, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))
	allowed := []string{"csv", "xlsx"}

	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{"", "csv", true},
		{"?format=XLSX", "xlsx", true},
		{"?format=json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/export"+tt.query, nil), "format", allowed, "csv")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestOTelMiddleware(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := infrastructure.NewIngestMetrics(provider.Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(NewOTelMiddleware(nil, metrics, logger).Handler)
	r.Get("/api/pages/{page}", okHandler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pages/macro_linkage", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var routes []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				routes = append(routes, route.AsString())
			}
		}
	}
	assert.Equal(t, []string{"/api/pages/{page}"}, routes)
}
