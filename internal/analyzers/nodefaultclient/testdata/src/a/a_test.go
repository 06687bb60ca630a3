package a

import "net/http"

func helper() {
	_, _ = http.Get("http://example.com")
}
