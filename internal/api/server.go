package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-script/internal/auth"
	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-script/internal/loader"
	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/state"
	"github.com/nerrad567/gray-logic-script/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Scripts is the view of the script loader the API needs.
type Scripts interface {
	Functions() []loader.FunctionInfo
	Triggers() []trigger.Info
	Reload(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Auth    *auth.Authenticator
	Store   *state.Store
	Bus     *event.Bus
	Runtime *runtime.Runtime
	Scripts Scripts
	Version string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	auth    *auth.Authenticator
	store   *state.Store
	bus     *event.Bus
	rt      *runtime.Runtime
	scripts Scripts
	version string

	hub     *Hub
	tickets *ticketStore
	server  *http.Server
	cancel  context.CancelFunc
}

// New creates an API server and hooks its WebSocket hub to the state
// store and event bus. The server is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Auth == nil:
		return nil, errors.New("authenticator is required")
	case deps.Store == nil:
		return nil, errors.New("state store is required")
	case deps.Bus == nil:
		return nil, errors.New("event bus is required")
	case deps.Runtime == nil:
		return nil, errors.New("runtime is required")
	case deps.Scripts == nil:
		return nil, errors.New("script loader is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		auth:    deps.Auth,
		store:   deps.Store,
		bus:     deps.Bus,
		rt:      deps.Runtime,
		scripts: deps.Scripts,
		version: deps.Version,
		hub:     NewHub(deps.WS, deps.Logger),
		tickets: newTicketStore(),
	}
	s.store.AddListener(state.ListenerFunc(s.relayState))
	s.bus.AddListener(event.ListenerFunc(s.relayEvent))
	return s, nil
}

// Handler returns the router. It is what Start serves.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The listener is bound before Start returns, so a port in use is
// reported here.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
