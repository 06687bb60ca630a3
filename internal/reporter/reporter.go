// Package reporter fetches memory usage reports from the target server.
package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// ReportPath is the diagnostic endpoint every target exposes.
const ReportPath = "/report"

var (
	ErrNotNumber     = errors.New("memory report is not a number")
	ErrNegative      = errors.New("memory report is negative")
	ErrUnexpectedRes = errors.New("unexpected memory report status")
)

// Client reads the target's resident memory over HTTP.
type Client struct {
	httpClient *http.Client
	url        string
	field      string
}

// NewClient returns a Client for the origin of base. field is a gjson path
// selecting the value inside the report; empty means the body is the number.
func NewClient(hc *http.Client, base *url.URL, field string) *Client {
	u := url.URL{Scheme: base.Scheme, Host: base.Host, Path: ReportPath}
	return &Client{httpClient: hc, url: u.String(), field: field}
}

// MemoryUsage returns the current memory usage of the target in bytes.
// Failures are not retried: an unreachable target is a setup problem.
func (c *Client) MemoryUsage(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read report: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %d", ErrUnexpectedRes, resp.StatusCode)
	}

	return Parse(body, c.field)
}

// Parse extracts the memory value from a report body.
func Parse(body []byte, field string) (int64, error) {
	body = bytes.TrimSpace(body)

	var res gjson.Result
	if field == "" {
		if !gjson.ValidBytes(body) {
			return 0, fmt.Errorf("%w: %q", ErrNotNumber, head(body))
		}
		res = gjson.ParseBytes(body)
	} else {
		res = gjson.GetBytes(body, field)
	}

	if res.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %q", ErrNotNumber, head(body))
	}
	v := res.Int()
	if v < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegative, v)
	}
	return v, nil
}

func head(b []byte) []byte {
	if len(b) > 64 {
		return b[:64]
	}
	return b
}
