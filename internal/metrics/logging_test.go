package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logRequest sends req through the middleware in front of a mux serving
// pattern with status, and returns the decoded log line.
func logRequest(t *testing.T, pattern string, status int, req *http.Request) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	logger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.InfoLevel))

	mux := http.NewServeMux()
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	w := httptest.NewRecorder()
	LoggingMiddleware(logger)(mux).ServeHTTP(w, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v, log: %s", err, buf.String())
	}
	return entry, w
}

func TestLoggingMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/positions/1709807400000", nil)
	entry, w := logRequest(t, "GET /api/positions/{id}", http.StatusOK, req)

	if entry["level"] != "info" {
		t.Errorf("expected info level, got %v", entry["level"])
	}
	if entry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/api/positions/1709807400000" {
		t.Errorf("unexpected path %v", entry["path"])
	}
	if entry["route"] != "/api/positions/{id}" {
		t.Errorf("expected route pattern, got %v", entry["route"])
	}
	if entry["status"].(float64) != 200 {
		t.Errorf("expected status 200, got %v", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms in log entry")
	}

	requestID := w.Header().Get("X-Request-ID")
	if requestID == "" || entry["request_id"] != requestID {
		t.Errorf("expected request_id %q in log, got %v", requestID, entry["request_id"])
	}
}

func TestLoggingMiddleware_ReusesRequestID(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/scan", nil)
	req.Header.Set("X-Request-ID", "cron-42")

	entry, w := logRequest(t, "POST /api/scan", http.StatusOK, req)

	if w.Header().Get("X-Request-ID") != "cron-42" {
		t.Errorf("expected incoming request id echoed, got %s", w.Header().Get("X-Request-ID"))
	}
	if entry["request_id"] != "cron-42" {
		t.Errorf("expected request_id cron-42, got %v", entry["request_id"])
	}
}

func TestLoggingMiddleware_ServerErrorLogsWarn(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/scan", nil)
	entry, _ := logRequest(t, "POST /api/scan", http.StatusInternalServerError, req)

	if entry["level"] != "warn" {
		t.Errorf("expected warn level for 500, got %v", entry["level"])
	}
}

func TestLoggingMiddleware_ClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		want      string
	}{
		{"remote addr", "", "10.0.0.1:54321"},
		{"forwarded", "203.0.113.50", "203.0.113.50"},
		{"forwarded chain", "203.0.113.50, 10.0.0.2", "203.0.113.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/quote?list=sh600519", nil)
			req.RemoteAddr = "10.0.0.1:54321"
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			entry, _ := logRequest(t, "GET /api/quote", http.StatusOK, req)
			if entry["client_ip"] != tt.want {
				t.Errorf("expected client_ip %s, got %v", tt.want, entry["client_ip"])
			}
		})
	}
}
