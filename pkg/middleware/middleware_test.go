package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"msgmon/internal/logger"
	"msgmon/pkg/logging"
)

func newEngine(log logger.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(log), RequestIDMiddleware(), LoggerMiddleware(log, "/health"))
	r.GET("/trace", func(c *gin.Context) {
		c.String(http.StatusOK, logging.GetTraceID(c.Request.Context()))
	})
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r http.Handler, path, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newEngine(logger.NopLogger())

	rec := serve(r, "/trace", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", rec.Body.String())

	rec = serve(r, "/trace", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, rec.Header().Get(RequestIDHeader), rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newEngine(logger.NewObserved(core))

	rec := serve(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "kaboom")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLoggerMiddleware_SkipsPaths(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newEngine(logger.NewObserved(core))

	serve(r, "/health", "")
	assert.Equal(t, 0, logs.FilterMessage("HTTP Request").Len())

	serve(r, "/trace?x=1", "")
	entries := logs.FilterMessage("HTTP Request").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "/trace?x=1", entries[0].ContextMap()["path"])
	}
}
