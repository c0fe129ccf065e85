package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/feedstore"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdownTimeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 1 << 16
)

// Store is the part of [feedstore.Store] the server needs.
type Store interface {
	State() feedstore.State
	Dispatch(action feedstore.Action)
	SubscribeState() <-chan feedstore.State
	UnsubscribeState(ch <-chan feedstore.State)
	SubscribeEffects() <-chan feedstore.Effect
	UnsubscribeEffects(ch <-chan feedstore.Effect)
}

// Server exposes a [Store] over HTTP.
//
// Server provides these endpoints:
//   - GET /api/state: current state and its visible posts as JSON
//   - POST /api/refresh?force=true: dispatches Refresh
//   - POST /api/feeds {"url": ...}: dispatches Add
//   - DELETE /api/feeds?url=...: dispatches Delete
//   - POST /api/select {"url": ...}: dispatches SelectFeed, empty url selects all feeds
//   - GET /api/sse: Server-Sent Events stream of states and effects
//   - GET /metrics: Prometheus metrics
//
// Action endpoints answer 202 Accepted once the action is dispatched. The
// outcome arrives on the SSE stream. The server is designed for graceful
// shutdown via context cancellation.
type Server struct {
	store      Store
	port       int
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(st Store, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  st,
		port:   port,
		logger: logger,
	}
}

// Handler returns the routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/feeds", s.handleFeeds)
	mux.HandleFunc("/api/select", s.handleSelect)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers exit on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// stateView is the JSON shape of a state snapshot.
type stateView struct {
	State feedstore.State  `json:"state"`
	Posts []feedstore.Post `json:"posts"`
}

func newStateView(st feedstore.State) stateView {
	return stateView{State: st, Posts: feedstore.VisiblePosts(st)}
}

// effectView is the JSON shape of an effect.
type effectView struct {
	Error      string `json:"error"`
	Diagnostic bool   `json:"diagnostic"`
}

func newEffectView(e feedstore.Effect) (effectView, bool) {
	ee, ok := e.(feedstore.ErrorEffect)
	if !ok {
		return effectView{}, false
	}
	v := effectView{Diagnostic: ee.IsDiagnostic()}
	if ee.Err != nil {
		v.Error = ee.Err.Error()
	}
	return v, true
}

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, newStateView(s.store.State()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid force parameter", http.StatusBadRequest)
			return
		}
		force = v
	}

	s.store.Dispatch(feedstore.Refresh{ForceLoad: force})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		req, ok := s.decodeURL(w, r)
		if !ok {
			return
		}
		if req.URL == "" {
			http.Error(w, "url is required", http.StatusBadRequest)
			return
		}
		s.store.Dispatch(feedstore.Add{URL: req.URL})
		w.WriteHeader(http.StatusAccepted)

	case http.MethodDelete:
		url := r.URL.Query().Get("url")
		if url == "" {
			http.Error(w, "url is required", http.StatusBadRequest)
			return
		}
		s.store.Dispatch(feedstore.Delete{URL: url})
		w.WriteHeader(http.StatusAccepted)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSelect resolves the url against the current feeds. An unknown url is
// still dispatched so subscribers see the Unknown feed effect.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.decodeURL(w, r)
	if !ok {
		return
	}

	if req.URL == "" {
		s.store.Dispatch(feedstore.SelectFeed{})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	for _, f := range s.store.State().Feeds {
		if f.SourceURL == req.URL {
			s.store.Dispatch(feedstore.SelectFeed{Feed: &f})
			w.WriteHeader(http.StatusAccepted)
			return
		}
	}

	s.store.Dispatch(feedstore.SelectFeed{Feed: &feedstore.Feed{SourceURL: req.URL}})
	http.Error(w, "unknown feed", http.StatusNotFound)
}

func (s *Server) decodeURL(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var req urlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return urlRequest{}, false
	}
	return req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams states and effects via Server-Sent Events.
//
// The current state is sent first, then every published state as an
// "state" event and every effect as an "effect" event. The handler uses
// write deadlines so a blocked write cannot hide shutdown or disconnect.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may not be supported by some ResponseWriter impls
	deadlinesSupported := true

	writeEvent := func(event string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("failed to encode sse event", "event", event, "error", err)
			return nil
		}

		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// the state channel replays the current state on subscribe
	states := s.store.SubscribeState()
	defer s.store.UnsubscribeState(states)
	effects := s.store.SubscribeEffects()
	defer s.store.UnsubscribeEffects(effects)

	for {
		select {
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := writeEvent("state", newStateView(st)); err != nil {
				return
			}

		case e, ok := <-effects:
			if !ok {
				return
			}
			v, known := newEffectView(e)
			if !known {
				continue
			}
			if err := writeEvent("effect", v); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}
