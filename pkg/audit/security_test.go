package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/middleware"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return logger, recorded
}

// requestContext returns a context carrying the id assigned by RequestLogger.
func requestContext(t *testing.T) (context.Context, string) {
	t.Helper()
	var ctx context.Context
	handler := middleware.RequestLogger(zap.NewNop())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sql/metadata", nil))
	return ctx, rec.Header().Get(middleware.RequestIDHeader)
}

func TestNewSecurityAuditor(t *testing.T) {
	logger, _ := setupTestLogger(t)
	assert.NotNil(t, NewSecurityAuditor(logger).logger)
	assert.NotNil(t, NewSecurityAuditor(nil).logger)
}

func TestLogInjectionAttempt(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)
	clientIP := "192.168.1.100"

	reqCtx, reqID := requestContext(t)
	tests := []struct {
		name    string
		ctx     context.Context
		wantReq string
	}{
		{name: "with request id", ctx: reqCtx, wantReq: reqID},
		{name: "without request id", ctx: context.Background(), wantReq: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorded.TakeAll()

			auditor.LogInjectionAttempt(tt.ctx, SQLInjectionDetails{
				ParamName:   "street",
				ParamValue:  "' OR '1'='1",
				Fingerprint: "s&sos",
				Statement:   "SELECT * FROM ADDRESS WHERE street = :#street AND note = 'private'",
			}, clientIP)

			logs := recorded.All()
			require.Len(t, logs, 1, "Expected exactly one log entry")

			entry := logs[0]
			assert.Equal(t, zapcore.ErrorLevel, entry.Level, "Should log at ERROR level")
			assert.Equal(t, "SQL injection attempt detected", entry.Message)
			assert.Equal(t, "security_audit", entry.LoggerName)

			fields := entry.ContextMap()
			assert.Equal(t, tt.wantReq, fields["request_id"])
			assert.Equal(t, "street", fields["param_name"])
			assert.Equal(t, "s&sos", fields["fingerprint"])
			assert.Equal(t, clientIP, fields["client_ip"])
			assert.Equal(t, "critical", fields["severity"])

			eventJSON, ok := fields["event_json"].(string)
			require.True(t, ok, "event_json should be a string")

			var event SecurityEvent
			require.NoError(t, json.Unmarshal([]byte(eventJSON), &event), "event_json should be valid JSON")
			assert.Equal(t, EventSQLInjectionAttempt, event.EventType)
			assert.Equal(t, tt.wantReq, event.RequestID)
			assert.Equal(t, "critical", event.Severity)

			details, ok := event.Details.(map[string]any)
			require.True(t, ok, "Details should be a map")
			assert.Equal(t, "' OR '1'='1", details["param_value"])
			assert.Equal(t, "SELECT * FROM ADDRESS WHERE street = :#street AND note = '?'", details["statement"],
				"literals in the statement are redacted")
		})
	}
}

func TestLogInjectionAttempt_TruncatesValue(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogInjectionAttempt(context.Background(), SQLInjectionDetails{
		ParamName:  "p",
		ParamValue: strings.Repeat("x", 500),
	}, "")

	var event struct {
		Details SQLInjectionDetails `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(recorded.All()[0].ContextMap()["event_json"].(string)), &event))
	assert.Len(t, event.Details.ParamValue, maxValueLength+len("..."))
}

func TestLogStatementRejected(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogStatementRejected(context.Background(), StatementRejectedDetails{
		Reason:    "statement_invalid",
		Message:   "failed to connect to postgresql://u:hunter2@db/x",
		Statement: "SELECT nope FROM ADDRESS",
	}, "10.0.0.1")

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "Statement rejected", logs[0].Message)

	fields := logs[0].ContextMap()
	assert.Equal(t, "statement_invalid", fields["reason"])
	assert.Equal(t, "warning", fields["severity"])

	eventJSON := fields["event_json"].(string)
	assert.NotContains(t, eventJSON, "hunter2")

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(eventJSON), &event))
	assert.Equal(t, EventStatementRejected, event.EventType)
	assert.Equal(t, "10.0.0.1", event.ClientIP)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "abc", ValueString("abc"))
	assert.Equal(t, "42", ValueString(42))
	assert.Equal(t, "true", ValueString(true))
}
