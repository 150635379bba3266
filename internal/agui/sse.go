package agui

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEEmitter frames events as Server-Sent Events. Each event is one
// `data: <json>` frame flushed immediately so deltas reach the widget as they
// are produced.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEmitter prepares the response for streaming and returns the emitter.
// It fails when the writer cannot flush, which means the server stack buffers
// responses and streaming is impossible.
func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &SSEEmitter{w: w, flusher: flusher}, nil
}

func (e *SSEEmitter) Emit(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// encoding/json escapes newlines, so the payload is always one line.
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	e.flusher.Flush()
	return nil
}

var _ Emitter = (*SSEEmitter)(nil)
