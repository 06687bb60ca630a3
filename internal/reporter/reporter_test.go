package reporter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newReportServer(t *testing.T, status int, body string) *url.URL {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ReportPath, r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL + "/some/base/")
	require.NoError(t, err)
	return u
}

func TestMemoryUsage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		field   string
		want    int64
		wantErr error
	}{
		{"integer", http.StatusOK, "123456789", "", 123456789, nil},
		{"newline", http.StatusOK, "2048\n", "", 2048, nil},
		{"exponent", http.StatusOK, "1.5e8", "", 150_000_000, nil},
		{"field", http.StatusOK, `{"rss":4096,"heap":1}`, "rss", 4096, nil},
		{"string", http.StatusOK, `"abc"`, "", 0, ErrNotNumber},
		{"garbage", http.StatusOK, "not json", "", 0, ErrNotNumber},
		{"object_without_field", http.StatusOK, `{"rss":1}`, "", 0, ErrNotNumber},
		{"missing_field", http.StatusOK, `{"rss":1}`, "heap", 0, ErrNotNumber},
		{"negative", http.StatusOK, "-5", "", 0, ErrNegative},
		{"status", http.StatusInternalServerError, "1", "", 0, ErrUnexpectedRes},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			base := newReportServer(t, tc.status, tc.body)
			c := NewClient(&http.Client{Timeout: time.Second}, base, tc.field)

			got, err := c.MemoryUsage(context.Background())
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMemoryUsage_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base, err := url.Parse(ts.URL)
	require.NoError(t, err)
	ts.Close()

	c := NewClient(&http.Client{Timeout: time.Second}, base, "")
	_, err = c.MemoryUsage(context.Background())
	require.Error(t, err)
}

func TestNewClient_UsesOrigin(t *testing.T) {
	base, err := url.Parse("http://127.0.0.1:4000/nested/path?q=1")
	require.NoError(t, err)
	c := NewClient(http.DefaultClient, base, "")
	require.Equal(t, "http://127.0.0.1:4000/report", c.url)
}
