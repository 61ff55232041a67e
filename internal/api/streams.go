package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/echovault/echovault/internal/api/respond"
	"github.com/echovault/echovault/internal/api/validate"
)

// StreamHandler serves server-sent event streams.
type StreamHandler struct {
	d Deps
}

// Events handles GET /api/users/{userId}/events: one SSE message per status transition.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.d.Bus == nil {
		respond.WriteError(w, http.StatusNotImplemented, "event stream not configured")
		return
	}
	ch, cancel := h.d.Bus.Subscribe(mux.Vars(r)["userId"])
	defer cancel()
	sse, ok := startSSE(w)
	if !ok {
		respond.WriteInternalError(w, "streaming unsupported")
		return
	}

	heartbeat := time.NewTicker(h.d.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if !sse.comment("ping") {
				return
			}
		case evt, open := <-ch:
			if !open {
				return
			}
			if !sse.send(string(evt.Kind), evt) {
				return
			}
		}
	}
}

// Entries handles GET /api/users/{userId}/entries/stream: the entry list is pushed as a
// "snapshot" message now and again whenever it changes.
func (h *StreamHandler) Entries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := validate.ListQuery(mux.Vars(r)["userId"], q.Get("limit"), q.Get("before"), q.Get("after"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	snaps, err := h.d.Store.Entries().Subscribe(r.Context(), req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	sse, ok := startSSE(w)
	if !ok {
		respond.WriteInternalError(w, "streaming unsupported")
		return
	}

	heartbeat := time.NewTicker(h.d.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if !sse.comment("ping") {
				return
			}
		case snap, open := <-snaps:
			if !open {
				return
			}
			if !sse.send("snapshot", map[string]any{"entries": snap, "count": len(snap)}) {
				return
			}
		}
	}
}

type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func startSSE(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseWriter{w: w, f: f}, true
}

func (s *sseWriter) send(event string, data any) bool {
	b, err := json.Marshal(data)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return false
	}
	s.f.Flush()
	return true
}

func (s *sseWriter) comment(text string) bool {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return false
	}
	s.f.Flush()
	return true
}
