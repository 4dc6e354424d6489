package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// latest replaces whatever is buffered in ch with v. Slow readers only see
// the newest value.
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// stream writes every value from updates as a server-sent event until the
// client disconnects.
func stream[T any](w http.ResponseWriter, r *http.Request, event string, updates <-chan T, render func(T) any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates:
			data, err := json.Marshal(render(v))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
