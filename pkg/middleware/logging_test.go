package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serve(t *testing.T, logger *zap.Logger, status int, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seenID string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		w.WriteHeader(status)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seenID
}

func TestRequestLogger_LogsRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	rec, id := serve(t, zap.New(core), http.StatusOK, httptest.NewRequest(http.MethodPost, "/api/sql/metadata", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, zapcore.DebugLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "/api/sql/metadata", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, id, fields["request_id"])

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.DebugLevel},
		{http.StatusUnprocessableEntity, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.InfoLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			serve(t, zap.New(core), tt.status, httptest.NewRequest(http.MethodGet, "/x", nil))

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.level, logs.All()[0].Level)
			assert.Equal(t, int64(tt.status), logs.All()[0].ContextMap()["status"])
		})
	}
}

func TestRequestLogger_KeepsValidIncomingID(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	incoming := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec, id := serve(t, zap.New(core), http.StatusOK, req)

	assert.Equal(t, incoming, id)
	assert.Equal(t, incoming, rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_ReplacesInvalidIncomingID(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\r\ninjected")
	_, id := serve(t, zap.New(core), http.StatusOK, req)

	assert.NotEqual(t, "not-a-uuid\r\ninjected", id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestLogger_NilLogger_PassesThrough(t *testing.T) {
	rec, id := serve(t, nil, http.StatusTeapot, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, id)
	assert.Empty(t, rec.Header().Get(RequestIDHeader))
}
