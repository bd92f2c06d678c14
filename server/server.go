// Package server exposes the orchestration pipeline over HTTP: provider
// discovery, buffered chat and SSE-streamed chat.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/mcpchat/agent"
	"github.com/hupe1980/mcpchat/logging"
	"github.com/hupe1980/mcpchat/model"
	"github.com/hupe1980/mcpchat/provider"
	"github.com/hupe1980/mcpchat/stream"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Options configure the server.
type Options struct {
	// StepLimit bounds model turns per session.
	StepLimit int
	// MaxParallelTools caps concurrent tool dispatches within one turn.
	MaxParallelTools int
	// EventBuffer sets the per-stream channel buffer.
	EventBuffer int
	// Logger receives structured request logs.
	Logger logging.Logger
}

// Server wires registry, resolver and model into the HTTP API.
type Server struct {
	registry *provider.Registry
	resolver *provider.Resolver
	model    model.Model
	opts     Options
	mux      *http.ServeMux
}

// New constructs the server and registers its routes.
func New(registry *provider.Registry, resolver *provider.Resolver, m model.Model, optFns ...func(o *Options)) *Server {
	opts := Options{
		StepLimit:   8,
		EventBuffer: 64,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		registry: registry,
		resolver: resolver,
		model:    m,
		opts:     opts,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /providers", s.handleProviders)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	return s
}

// Handler returns the root handler including CORS middleware.
func (s *Server) Handler() http.Handler { return withCORS(s.mux) }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// handleProviders re-probes all configured providers and returns their
// refreshed statuses in name order.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	statuses := s.registry.ProbeAll(r.Context())
	writeJSON(w, http.StatusOK, statuses)
}

// handleChat runs a session to completion and returns only the terminal
// state: final text plus the distinct tool names invoked.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	s.opts.Logger.Info("chat request",
		"providers", req.SelectedProviders,
		"history", len(req.History),
	)

	sess := s.newSession(r, req, &stream.Collector{}, false)
	res, err := sess.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrAborted) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Detail: fmt.Sprintf("agent execution failed: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  res.FinalText,
		ToolsUsed: nonNil(res.ToolsUsed),
	})
}

// handleChatStream runs a session while relaying its event stream over SSE.
// The stream always ends with exactly one done or error event; a connection
// close without one signals abnormal termination to the consumer.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "streaming unsupported"})
		return
	}
	s.opts.Logger.Info("chat stream request",
		"providers", req.SelectedProviders,
		"history", len(req.History),
	)

	emitter := stream.NewEmitter(s.opts.EventBuffer)
	sess := s.newSession(r, req, emitter, true)

	go func() {
		res, err := sess.Run(r.Context())
		if err != nil {
			emitter.Fail(fmt.Sprintf("agent execution failed: %v", err))
			return
		}
		emitter.Done(res.FinalText, res.ToolsUsed)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range emitter.Events() {
		if err := writeSSE(w, ev); err != nil {
			// Consumer is gone; stop the stream which aborts the session.
			emitter.Stop()
			sess.Abort()
			return
		}
		flusher.Flush()
	}
}

// newSession builds a session for one chat request, resolving the selected
// providers into a catalog first. Resolution warnings are logged, never
// fatal.
func (s *Server) newSession(r *http.Request, req ChatRequest, sink agent.Sink, streaming bool) *agent.Session {
	catalog, warnings := s.resolver.Resolve(r.Context(), req.SelectedProviders)
	for _, warn := range warnings {
		s.opts.Logger.Warn("catalog warning",
			"provider", warn.Provider,
			"tool", warn.Tool,
			"reason", warn.Reason,
			"detail", warn.Detail,
		)
	}
	return agent.New(s.model, catalog, s.registry, sink, req.Transcript(), func(o *agent.Options) {
		o.StepLimit = s.opts.StepLimit
		o.MaxParallelTools = s.opts.MaxParallelTools
		o.Stream = streaming
		o.Logger = s.opts.Logger
	})
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
		return ChatRequest{}, false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return ChatRequest{}, false
	}
	return req, true
}

// writeSSE frames one event as a named SSE message.
func writeSSE(w http.ResponseWriter, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// withCORS allows browser frontends on other origins to call the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
