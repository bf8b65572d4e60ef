package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanko-field/cartclone/internal/platform/requestctx"
)

func TestTraceMiddlewareContinuesCloudTraceContext(t *testing.T) {
	var captured requestctx.TraceInfo
	handler := TraceMiddleware("demo-project")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := requestctx.Trace(r.Context())
		if !ok {
			t.Fatalf("expected trace info on context")
		}
		captured = info
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/abc:clone", nil)
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if captured.TraceID != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("expected trace id to be continued, got %q", captured.TraceID)
	}
	if captured.SpanID != "0000000000000001" {
		t.Fatalf("expected span id 0000000000000001, got %q", captured.SpanID)
	}
	if !captured.Sampled {
		t.Fatalf("expected sampled flag to be carried")
	}
	if captured.ProjectID != "demo-project" {
		t.Fatalf("expected project id demo-project, got %q", captured.ProjectID)
	}
	if got := rr.Header().Get(cloudTraceHeader); got != "105445aa7843bc8bf206b12000100000/1;o=1" {
		t.Fatalf("unexpected echoed trace header %q", got)
	}
}

func TestTraceMiddlewarePrefersTraceparent(t *testing.T) {
	var traceID string
	handler := TraceMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = requestctx.TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	req.Header.Set(cloudTraceHeader, "105445aa7843bc8bf206b12000100000/1;o=1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if traceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected traceparent to win, got %q", traceID)
	}
	if got := rr.Header().Get(cloudTraceHeader); got != "4bf92f3577b34da6a3ce929d0e0e4736/67667974448284343;o=1" {
		t.Fatalf("unexpected echoed trace header %q", got)
	}
}

func TestParseCloudTraceContextRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"no span":       "105445aa7843bc8bf206b12000100000",
		"bad trace id":  "zz/1;o=1",
		"zero span":     "105445aa7843bc8bf206b12000100000/0;o=1",
		"hex span":      "105445aa7843bc8bf206b12000100000/ff;o=1",
		"zero trace id": "00000000000000000000000000000000/1;o=1",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := parseCloudTraceContext(header); ok {
				t.Fatalf("expected %q to be rejected", header)
			}
		})
	}

	spanCtx, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/42")
	if !ok {
		t.Fatalf("expected header without options to parse")
	}
	if spanCtx.IsSampled() {
		t.Fatalf("expected unsampled context without o=1")
	}
}

func TestLocaleMiddleware(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{header: "ja-JP,en;q=0.8", want: "ja-JP"},
		{header: "en-US;q=0.9", want: "en-US"},
		{header: "*", want: ""},
		{header: "", want: ""},
	}
	for _, tc := range cases {
		var got string
		handler := LocaleMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = requestctx.Locale(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Accept-Language", tc.header)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if got != tc.want {
			t.Fatalf("Accept-Language %q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}

func TestRequestLoggerMiddlewareLogsRouteAndCart(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)), LocaleMiddleware, RequestLoggerMiddleware("demo-project"))
	router.Post("/carts/{cartId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
	})

	req := httptest.NewRequest(http.MethodPost, "/carts/masked-1", nil)
	req.Header.Set("Accept-Language", "ja")
	router.ServeHTTP(httptest.NewRecorder(), req)

	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(completed))
	}
	entry := completed[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 404, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["route"] != "/carts/{cartId}" {
		t.Fatalf("expected route pattern, got %v", fields["route"])
	}
	if fields["cart_id"] != "masked-1" {
		t.Fatalf("expected cart id field, got %v", fields["cart_id"])
	}
	if fields["status"] != int64(http.StatusNotFound) {
		t.Fatalf("expected status 404, got %v", fields["status"])
	}
	if fields["bytes"] != int64(2) {
		t.Fatalf("expected 2 bytes, got %v", fields["bytes"])
	}
	if fields["locale"] != "ja" {
		t.Fatalf("expected locale ja, got %v", fields["locale"])
	}
	if logs.FilterMessage("request started").Len() != 1 {
		t.Fatalf("expected request started entry")
	}
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "internal_server_error" {
		t.Fatalf("expected internal_server_error code, got %v", body["error"])
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged on fallback logger")
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	requestCore, requestLogs := observer.New(zapcore.DebugLevel)
	logEvent := EventLogger(zap.New(baseCore))

	logEvent(context.Background(), "cart_clone.started", map[string]any{"sourceCartId": "src"})
	ctx := requestctx.WithLogger(context.Background(), zap.New(requestCore))
	logEvent(ctx, "cart_clone.coupon_skipped", map[string]any{"error": errors.New("expired")})

	if baseLogs.Len() != 1 || requestLogs.Len() != 1 {
		t.Fatalf("expected one entry per logger, got base=%d request=%d", baseLogs.Len(), requestLogs.Len())
	}
	started := baseLogs.All()[0]
	if started.Level != zapcore.InfoLevel || started.ContextMap()["sourceCartId"] != "src" {
		t.Fatalf("unexpected base entry %+v", started)
	}
	skipped := requestLogs.All()[0]
	if skipped.Level != zapcore.WarnLevel {
		t.Fatalf("expected error fields to raise level to warn, got %s", skipped.Level)
	}
	if skipped.ContextMap()["event"] != "cart_clone.coupon_skipped" {
		t.Fatalf("expected event field, got %v", skipped.ContextMap()["event"])
	}
}

func TestSanitizeRouteStripsControlCharacters(t *testing.T) {
	if got := SanitizeRoute("/carts\n/abc\x00"); got != "/carts/abc" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("expected empty route to become /, got %q", got)
	}
}
