package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/lumora-ai/resolve/pkg/status"
)

//go:embed templates
var content embed.FS

const shutdownGrace = 5 * time.Second

// ServerConfig holds configuration for the diagnostics server.
type ServerConfig struct {
	Port          int    // port to listen on
	Strategy      string // active model strategy shown in the dashboard header
	CatalogSource string // human-readable origin of the loaded catalog
}

// Server exposes the resolution diagnostics dashboard over HTTP: an SSE event
// stream with history replay, the latest resolution report as JSON, and the
// dashboard page itself.
type Server struct {
	cfg    ServerConfig
	hub    *Hub
	buffer *Buffer
	holder *status.Holder
	page   *template.Template
	srv    *http.Server
}

// NewServer creates a diagnostics server. holder may be nil, in which case
// /api/status reports not found.
func NewServer(cfg ServerConfig, hub *Hub, buffer *Buffer, holder *status.Holder) *Server {
	// the template ships in the binary, a parse failure is a build defect
	page := template.Must(template.ParseFS(content, "templates/base.html"))
	return &Server{cfg: cfg, hub: hub, buffer: buffer, holder: holder, page: page}
}

// Start listens until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/api/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// Hub returns the server's event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Buffer returns the server's event buffer.
func (s *Server) Buffer() *Buffer { return s.buffer }

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.page.Execute(w, struct {
		Strategy      string
		CatalogSource string
	}{s.cfg.Strategy, s.cfg.CatalogSource})
	if err != nil {
		http.Error(w, "template execution error", http.StatusInternalServerError)
	}
}

// handleStatus serves the latest resolution report as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.holder == nil {
		http.Error(w, "no status available", http.StatusNotFound)
		return
	}

	data, err := s.holder.Snapshot().JSON()
	if err != nil {
		log.Printf("[WARN] failed to encode status: %v", err)
		http.Error(w, "unable to encode status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleEvents streams events over SSE, replaying buffered history before
// switching to live hub delivery.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	for _, ev := range s.buffer.All() {
		writeSSE(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSE emits one event as an SSE data frame, skipping events that fail to
// encode.
func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := ev.JSON()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
