package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clickspan/agent/internal/display"
	"github.com/clickspan/agent/internal/models"
	"github.com/clickspan/agent/internal/tracker"
)

type Server struct {
	tracker *tracker.Tracker
	display *display.Manager
	address string
	server  *http.Server
}

func NewServer(t *tracker.Tracker, d *display.Manager, address string) *Server {
	return &Server{
		tracker: t,
		display: d,
		address: address,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleEvents(w http.ResponseWriter, request *http.Request) {
	var batch models.Batch
	if err := json.NewDecoder(request.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	// Rejected clicks are filtered, not failed: the content script gets 204
	// either way.
	for _, event := range batch.Events {
		s.tracker.HandleClick(event)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNewContext(w http.ResponseWriter, _ *http.Request) {
	contextID := s.tracker.StartContext()
	respondJSON(w, map[string]string{"contextId": contextID}, http.StatusCreated)
}

func (s *Server) handleCommand(command tracker.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := s.tracker.Do(command); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.tracker.Stats()
	if stats.LastClickTime != nil {
		stats.LastClickAgo = humanize.Time(time.UnixMilli(*stats.LastClickTime))
	}
	respondJSON(w, stats, http.StatusOK)
}

func (s *Server) handleDisplay(w http.ResponseWriter, _ *http.Request) {
	event := s.display.Current()
	if event == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, event, http.StatusOK)
}

func (s *Server) handleDisplayStream(w http.ResponseWriter, request *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := s.display.Subscribe()
	defer s.display.Unsubscribe(events)

	flusher.Flush()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()

		case <-request.Context().Done():
			return
		}
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealthz)
	router.Post("/events", s.handleEvents)
	router.Post("/contexts", s.handleNewContext)
	router.Post("/control/reset", s.handleCommand(tracker.CmdReset))
	router.Post("/control/enable", s.handleCommand(tracker.CmdEnable))
	router.Post("/control/disable", s.handleCommand(tracker.CmdDisable))
	router.Get("/stats", s.handleStats)
	router.Get("/display", s.handleDisplay)
	router.Get("/display/stream", s.handleDisplayStream)

	return router
}

func respondJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) Start() error {
	router := s.setupRoutes()
	s.server = &http.Server{
		Addr:        s.address,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// No WriteTimeout: /display/stream holds its connection open.
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("clickspan agent listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start:", err)
		}
	}()

	<-shutdownChannel
	log.Println("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
	return nil
}
