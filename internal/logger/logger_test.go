package logger

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupWithJSON(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWith(&buf, "info", "json")
	l.Info("index_reload_ok", "lots", 3)
	assert.Contains(t, buf.String(), `"msg":"index_reload_ok"`)
	assert.Contains(t, buf.String(), `"lots":3`)
	assert.Same(t, l, L())
}

func TestAccessMiddlewareRecordsRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	l := SetupWith(&buf, "debug", "text")
	r := mux.NewRouter()
	r.HandleFunc("/parking-lot/{op}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})
	r.Use(AccessMiddleware(l))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parking-lot/nearest", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "msg=http_access")
	assert.Contains(t, out, "route=/parking-lot/{op}")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=2")
}
