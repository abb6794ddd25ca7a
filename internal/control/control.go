// Package control is the local HTTP surface: health and stats
// inspection, a stats reset, a manual cycle trigger, and the SSE event
// stream. Bound to localhost by default; there is no auth.
package control

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tejaschuahan/job-scraper-bot/internal/events"
	"github.com/tejaschuahan/job-scraper-bot/internal/fetch"
	"github.com/tejaschuahan/job-scraper-bot/internal/stats"
)

type Deps struct {
	Tracker *stats.Tracker
	Health  *fetch.Health
	Hub     *events.Hub
	RunNow  func()
	Log     *zap.Logger
}

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := healthHandler{health: d.Health, tracker: d.Tracker}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.get,
	}))

	sh := statsHandler{tracker: d.Tracker, log: d.Log}
	mux.HandleFunc("/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.get,
	}))
	mux.HandleFunc("/stats/reset", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.reset,
	}))

	rh := runHandler{runNow: d.RunNow, log: d.Log}
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.post,
	}))

	eh := eventsHandler{hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.serveSSE,
	}))

	return mux
}

// Serve runs the control server until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, mux *http.ServeMux, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("control server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	case err := <-errCh:
		return err
	}
}

type healthHandler struct {
	health  *fetch.Health
	tracker *stats.Tracker
}

func (h healthHandler) get(w http.ResponseWriter, r *http.Request) {
	snap := h.tracker.Snapshot()
	writeJSON(w, map[string]any{
		"ok":      true,
		"uptime":  time.Since(snap.Since).Round(time.Second).String(),
		"cycles":  snap.Cycles,
		"sources": h.health.Snapshot(),
	})
}

type statsHandler struct {
	tracker *stats.Tracker
	log     *zap.Logger
}

func (h statsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.tracker.Snapshot())
}

func (h statsHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	h.log.Info("stats reset via control api")
	writeJSON(w, map[string]any{"ok": true})
}

type runHandler struct {
	runNow func()
	log    *zap.Logger
}

func (h runHandler) post(w http.ResponseWriter, r *http.Request) {
	h.runNow()
	h.log.Info("manual cycle requested via control api")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{"ok": true, "status": "cycle requested"})
}

type eventsHandler struct {
	hub *events.Hub
}

func (h eventsHandler) serveSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	// ping so the client knows the stream is live
	writeSSE(w, events.MakeEvent("", "ping", nil))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			writeSSE(w, evt)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e events.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: " + e.Type + "\ndata: " + string(b) + "\n\n"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
