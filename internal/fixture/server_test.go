package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/and161185/bodyleak/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := &Server{
		Config:   &config.FixtureConfig{Addr: "127.0.0.1:0", Logger: zap.NewNop().Sugar()},
		Memory:   func() (int64, error) { return 123456789, nil },
		retained: &retainer{},
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url string, body []byte) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, got
}

func TestEndpoints(t *testing.T) {
	payload := bytes.Repeat([]byte("1"), 512*1024)
	jsonPayload, err := json.Marshal(jsonBody{Bun: string(payload)})
	require.NoError(t, err)

	tests := []struct {
		path string
		body []byte
		want []byte
	}{
		{"/", payload, okBody},
		{"/buffering", payload, okBody},
		{"/json-buffering", jsonPayload, okBody},
		{"/buffering+body-getter", payload, okBody},
		{"/streaming", payload, okBody},
		{"/incomplete-streaming", payload, okBody},
		{"/streaming-echo", payload, payload},
		{"/leaking", payload, okBody},
	}

	_, ts := newTestServer(t)
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			status, got := post(t, ts.URL+tc.path, tc.body)
			require.Equal(t, http.StatusOK, status)
			require.True(t, bytes.Equal(tc.want, got), "body mismatch: got %d bytes", len(got))
		})
	}
}

func TestJSONBufferingHandler_InvalidJSON(t *testing.T) {
	_, ts := newTestServer(t)
	status, _ := post(t, ts.URL+"/json-buffering", []byte("{not json"))
	require.Equal(t, http.StatusBadRequest, status)
}

func TestEndpoints_RejectGet(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/buffering")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReportHandler(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/report")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	require.EqualValues(t, 123456789, v)
}

func TestReportHandler_MemoryError(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Memory = func() (int64, error) { return 0, io.ErrUnexpectedEOF }

	resp, err := http.Get(ts.URL + "/report")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLeakingHandler_RetainsBodies(t *testing.T) {
	srv, ts := newTestServer(t)
	payload := bytes.Repeat([]byte("1"), 1024)
	for range 5 {
		status, _ := post(t, ts.URL+"/leaking", payload)
		require.Equal(t, http.StatusOK, status)
	}
	require.EqualValues(t, 5*1024, srv.retained.size())
}

func TestBufferingHandler_DoesNotRetain(t *testing.T) {
	srv, ts := newTestServer(t)
	status, _ := post(t, ts.URL+"/buffering", bytes.Repeat([]byte("1"), 1024))
	require.Equal(t, http.StatusOK, status)
	require.Zero(t, srv.retained.size())
}

func TestProcessRSS(t *testing.T) {
	v, err := ProcessRSS(zap.NewNop().Sugar())()
	require.NoError(t, err)
	require.Positive(t, v)

	sys, err := RuntimeSys()
	require.NoError(t, err)
	require.Positive(t, sys)
}

func TestReportHandler_DoesNotPerturbMemory(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Memory = ProcessRSS(zap.NewNop().Sugar())

	read := func() int64 {
		resp, err := http.Get(ts.URL + "/report")
		require.NoError(t, err)
		defer resp.Body.Close()
		var v int64
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
		return v
	}

	first, second := read(), read()
	require.InDelta(t, first, second, float64(16*1024*1024))
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	t.Setenv("BODYLEAK_ANNOUNCE_FD", "")
	srv := NewServer(&config.FixtureConfig{Addr: "127.0.0.1:0", Logger: zap.NewNop().Sugar()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_BadAddress(t *testing.T) {
	srv := NewServer(&config.FixtureConfig{Addr: "256.0.0.1:99999", Logger: zap.NewNop().Sugar()})
	require.Error(t, srv.Run(context.Background()))
}
