package fixture

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
)

var okBody = []byte("Ok")

// chunk read by the incomplete-streaming endpoint before it answers
const incompleteChunk = 16 * 1024

func writeOk(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(okBody)
}

// IgnoreHandler answers without touching the body.
func (srv *Server) IgnoreHandler(w http.ResponseWriter, r *http.Request) {
	writeOk(w)
}

// BufferingHandler reads the whole body into memory.
func (srv *Server) BufferingHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := io.ReadAll(r.Body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	writeOk(w)
}

type jsonBody struct {
	Bun string `json:"bun"`
}

// JSONBufferingHandler decodes the whole body as JSON.
func (srv *Server) JSONBufferingHandler(w http.ResponseWriter, r *http.Request) {
	var body jsonBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	writeOk(w)
}

// BufferingBodyGetterHandler buffers the body, puts it back on the request
// and reads it a second time through r.Body.
func (srv *Server) BufferingBodyGetterHandler(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))

	n, err := io.Copy(io.Discard, r.Body)
	if err != nil || n != int64(len(buf)) {
		http.Error(w, "body changed", http.StatusInternalServerError)
		return
	}
	writeOk(w)
}

// StreamingHandler consumes the body chunk by chunk without keeping it.
func (srv *Server) StreamingHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	writeOk(w)
}

// IncompleteStreamingHandler reads the first chunk and answers, leaving the
// rest of the body to the server.
func (srv *Server) IncompleteStreamingHandler(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, incompleteChunk)
	_, _ = io.ReadFull(r.Body, buf)
	writeOk(w)
}

// StreamingEchoHandler writes the body back while still reading it.
func (srv *Server) StreamingEchoHandler(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.EnableFullDuplex(); err != nil {
		srv.Config.Logger.Debugw("full duplex unavailable", "error", err)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, r.Body); err != nil {
		srv.Config.Logger.Warnw("echo interrupted", "error", err)
	}
}

// LeakingHandler keeps every body it receives. It exists to prove the
// harness fails a real leak.
func (srv *Server) LeakingHandler(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	srv.retained.add(buf)
	srv.Config.Logger.Debugw("body retained", "retained_bytes", srv.retained.size())
	writeOk(w)
}

// ReportHandler collects garbage, then answers with the resident memory in
// bytes as a bare JSON number.
func (srv *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
	runtime.GC()
	debug.FreeOSMemory()

	v, err := srv.Memory()
	if err != nil {
		srv.Config.Logger.Errorw("read memory usage", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.Config.Logger.Errorw("write memory report", "error", err)
	}
}

type retainer struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (r *retainer) add(b []byte) {
	r.mu.Lock()
	r.bodies = append(r.bodies, b)
	r.mu.Unlock()
}

func (r *retainer) size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bodies {
		n += int64(len(b))
	}
	return n
}
