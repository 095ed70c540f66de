// Package server exposes the drawing sync protocol over websockets together
// with a small HTTP API for health and room inspection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/hay-kot/scribble/internal/core/config"
	"github.com/hay-kot/scribble/internal/core/room"
	"github.com/hay-kot/scribble/internal/core/session"
	"github.com/hay-kot/scribble/internal/core/validate"
	"github.com/hay-kot/scribble/internal/metrics"
)

// TransportOptions tunes each websocket connection.
type TransportOptions struct {
	SendBuffer      int
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
}

// Options configures a Server.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	Transport       TransportOptions
}

// OptionsFromConfig maps the server and transport sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Transport: TransportOptions{
			SendBuffer:      cfg.Transport.SendBuffer,
			WriteTimeout:    cfg.Transport.WriteTimeout,
			PongTimeout:     cfg.Transport.PongTimeout,
			PingInterval:    cfg.Transport.PingInterval,
			MaxMessageBytes: cfg.Transport.MaxMessageBytes,
		},
	}
}

// Server owns the websocket connections for one registry.
type Server struct {
	opts     Options
	registry *room.Registry
	metrics  *metrics.Collector
	log      zerolog.Logger
	upgrader websocket.Upgrader

	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[*wsConn]struct{}
	draining bool
}

// New creates a Server. collector may be nil, in which case /metrics is not
// mounted.
func New(registry *room.Registry, opts Options, collector *metrics.Collector, log zerolog.Logger) *Server {
	s := &Server{
		opts:     opts,
		registry: registry,
		metrics:  collector,
		log:      log,
		conns:    make(map[*wsConn]struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.log))

	r.Get("/ws", s.handleWebsocket)

	r.Group(func(r chi.Router) {
		r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", d).
				Msg("request")
		}))
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc: func(_ *http.Request, origin string) bool {
				return originAllowed(s.opts.AllowedOrigins, origin)
			},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))

		api := func(r chi.Router) {
			r.Get("/health", s.handleHealth)
			r.Get("/rooms", s.handleRooms)
			r.Get("/room/{roomId}", s.handleRoom)
		}
		r.Group(api)
		r.Route("/api", api)

		if s.metrics != nil {
			r.Handle("/metrics", s.metrics.Handler())
		}
	})

	return r
}

// Run listens on Options.Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On cancellation
// every websocket receives a going-away close frame and Serve waits, up to
// ShutdownTimeout, for connection goroutines to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.closeAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all connections closed")
	case <-shutdownCtx.Done():
		s.log.Warn().Int("connections", s.Connections()).Msg("shutdown timed out with open connections")
	}

	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Connections returns the number of open websocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("websocket upgrade")
		return
	}

	c := newWSConn(ws, s.opts.Transport, s.log)
	opts := session.Options{Logger: s.log}
	if s.metrics != nil {
		opts.Metrics = s.metrics
	}
	sess := session.New(c, s.registry, opts)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer s.untrack(c)

		if !s.track(c) {
			c.Close(websocket.CloseGoingAway, "server shutting down")
			return
		}

		c.log.Debug().Str("remote", r.RemoteAddr).Msg("connection opened")
		c.readPump(sess.Handle)
		sess.Close()
		c.Close(websocket.CloseNormalClosure, "")
		c.log.Debug().Msg("connection closed")
	}()
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// closeAll stops tracking new connections, closes every open websocket and
// then drops every room. The registry refuses joins from here on, so a join
// still in flight on a closing socket cannot create a room.
func (s *Server) closeAll() {
	s.mu.Lock()
	s.draining = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}

	s.registry.Close()
}

type healthResponse struct {
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	ActiveRooms      int       `json:"activeRooms"`
	TotalConnections int       `json:"totalConnections"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, healthResponse{
		Status:           "ok",
		Timestamp:        time.Now().UTC(),
		ActiveRooms:      s.registry.Len(),
		TotalConnections: s.Connections(),
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, s.registry.Stats())
}

type roomResponse struct {
	RoomID       string             `json:"roomId"`
	UserCount    int                `json:"userCount"`
	Users        []room.Participant `json:"users"`
	TotalActions int                `json:"totalActions"`
	Cursor       int                `json:"cursor"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if err := validate.RoomID(roomID); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rm, ok := s.registry.Get(roomID)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "Room not found")
		return
	}

	info := rm.Info()
	s.respondJSON(w, r, http.StatusOK, roomResponse{
		RoomID:       info.RoomID,
		UserCount:    info.UserCount,
		Users:        info.Users,
		TotalActions: info.History.TotalActions,
		Cursor:       info.History.Cursor,
		CreatedAt:    info.CreatedAt,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, r, status, map[string]string{"error": message})
}
