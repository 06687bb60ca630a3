package a

import (
	"net/http"
	"net/url"
	"time"
)

func bad() {
	_, _ = http.Get("http://example.com")                     // want `use of http.Get bypasses the configured client`
	_, _ = http.Head("http://example.com")                    // want `use of http.Head bypasses the configured client`
	_, _ = http.Post("http://example.com", "text/plain", nil) // want `use of http.Post bypasses the configured client`
	_, _ = http.PostForm("http://example.com", url.Values{})  // want `use of http.PostForm bypasses the configured client`
	c := http.DefaultClient                                   // want `use of http.DefaultClient bypasses the configured client`
	_ = c
}

func good() {
	c := &http.Client{Timeout: time.Second}
	_, _ = c.Get("http://example.com")
	_, _ = c.Post("http://example.com", "text/plain", nil)
	_ = http.MethodGet
}
