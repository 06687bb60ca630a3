package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/and161185/bodyleak/internal/driver"
)

var okBody = []byte("Ok")

// NewPayload returns size bytes of ASCII '1'.
func NewPayload(size int) []byte {
	return bytes.Repeat([]byte("1"), size)
}

// Caller performs one round-trip per call against a target endpoint and
// checks the response against that endpoint's canonical body.
type Caller struct {
	client      *http.Client
	origin      string
	payload     []byte
	jsonPayload []byte
}

// NewCaller prepares the raw and JSON-wrapped bodies once; every request
// reuses them.
func NewCaller(client *http.Client, base *url.URL, payload []byte) (*Caller, error) {
	jsonPayload, err := json.Marshal(struct {
		Bun string `json:"bun"`
	}{Bun: string(payload)})
	if err != nil {
		return nil, fmt.Errorf("marshal JSON payload: %w", err)
	}

	return &Caller{
		client:      client,
		origin:      base.Scheme + "://" + base.Host,
		payload:     payload,
		jsonPayload: jsonPayload,
	}, nil
}

func (c *Caller) Ignore(ctx context.Context) error {
	return c.post(ctx, "/", "application/octet-stream", c.payload, okBody)
}

func (c *Caller) Buffering(ctx context.Context) error {
	return c.post(ctx, "/buffering", "application/octet-stream", c.payload, okBody)
}

func (c *Caller) JSONBuffering(ctx context.Context) error {
	return c.post(ctx, "/json-buffering", "application/json", c.jsonPayload, okBody)
}

func (c *Caller) BufferingBodyGetter(ctx context.Context) error {
	return c.post(ctx, "/buffering+body-getter", "application/octet-stream", c.payload, okBody)
}

func (c *Caller) Streaming(ctx context.Context) error {
	return c.post(ctx, "/streaming", "application/octet-stream", c.payload, okBody)
}

func (c *Caller) IncompleteStreaming(ctx context.Context) error {
	return c.post(ctx, "/incomplete-streaming", "application/octet-stream", c.payload, okBody)
}

// StreamingEcho expects the exact request bytes back.
func (c *Caller) StreamingEcho(ctx context.Context) error {
	return c.post(ctx, "/streaming-echo", "application/octet-stream", c.payload, c.payload)
}

func (c *Caller) post(ctx context.Context, path, contentType string, body, want []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &driver.StatusError{Endpoint: path, StatusCode: resp.StatusCode}
	}
	if !bytes.Equal(got, want) {
		return driver.NewValidationError(path, want, got)
	}
	return nil
}
