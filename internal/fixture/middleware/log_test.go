package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogMiddleware_LeavesBodyToHandler(t *testing.T) {
	core, obs := observer.New(zap.DebugLevel)
	logger := zap.New(core).Sugar()

	var seen []byte
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("Ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/buffering", bytes.NewBufferString("hello"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, "hello", string(seen))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "Ok", rr.Body.String())

	entries := obs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.EqualValues(t, http.StatusCreated, fields["status"])
	require.EqualValues(t, 2, fields["size"])
	require.EqualValues(t, 5, fields["request_size"])
}

func TestLogMiddleware_SilentAboveDebug(t *testing.T) {
	core, obs := observer.New(zap.InfoLevel)
	h := LogMiddleware(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	require.Zero(t, obs.Len())
}

func TestLoggingResponseWriter_Unwrap(t *testing.T) {
	rr := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rr}
	require.Same(t, rr, lrw.Unwrap())
}
