package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	handler := func(status int) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
	}

	t.Run("Levels", func(t *testing.T) {
		for status, level := range map[int]string{200: "INFO", 404: "WARN", 503: "ERROR"} {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			NewStructuredLogger(logger)(handler(status)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/payments/packages", nil))

			var line map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, level, line["level"])
			assert.Equal(t, float64(status), line["response"].(map[string]interface{})["status"])
		}
	})

	t.Run("Quiet Path", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		mw := NewStructuredLogger(logger, "/metrics")

		mw(handler(http.StatusOK)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Zero(t, buf.Len())

		mw(handler(http.StatusInternalServerError)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.NotZero(t, buf.Len())
	})
}
