// Package sse provides Server-Sent Events plumbing for streaming run output.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	headerContentType     = "Content-Type"
	headerCacheControl    = "Cache-Control"
	headerConnection      = "Connection"
	headerXAccelBuffering = "X-Accel-Buffering"

	contentType = "text/event-stream"
)

// Event is one server-push message. The wire frame is
// data: {"type":<Type>,"data":<Data>}\n\n so clients dispatch on the
// embedded type field rather than the SSE event name.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SetHeaders sets the standard SSE response headers.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set(headerContentType, contentType)
	w.Header().Set(headerCacheControl, "no-cache")
	w.Header().Set(headerConnection, "keep-alive")
	w.Header().Set(headerXAccelBuffering, "no")
}

type flusher interface {
	Flush()
}

// WriteEvent writes one event frame and flushes it to the client.
func WriteEvent(w http.ResponseWriter, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event frame: %w", err)
	}
	if f, ok := w.(flusher); ok {
		f.Flush()
	}
	return nil
}
