package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"outfit-studio/internal/orchestrator"
)

// handleEvents streams run snapshots as server-sent events. Slow readers
// only ever see the latest snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	latest := make(chan orchestrator.Snapshot, 1)
	unsubscribe := sess.Orchestrator().SubscribeWithCurrent(func(snap orchestrator.Snapshot) {
		offerLatest(latest, snap)
	})
	defer unsubscribe()

	_, _ = fmt.Fprint(w, ":ok\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case snap := <-latest:
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			flusher.Flush()

		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ":heartbeat\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

// offerLatest replaces whatever is buffered in ch with snap. It assumes a
// single producer.
func offerLatest(ch chan orchestrator.Snapshot, snap orchestrator.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
