// Package api provides the HTTP REST API and WebSocket server for USB
// Power Flow Core.
//
// It exposes the device snapshot, power-flag mutations, elevation
// status, and mutation history to user interfaces (web admin, tray
// apps, fleet tooling).
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/usbflow-core/internal/elevation"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/config"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/logging"
	"github.com/nerrad567/usbflow-core/internal/usb"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Refresher schedules a snapshot rescan. Requests are coalesced by the
// implementation; calling it repeatedly is cheap.
type Refresher interface {
	RequestRefresh()
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Store       *usb.Store
	Executor    *usb.Executor
	Coordinator *elevation.Coordinator
	History     usb.HistoryRepository
	Refresher   Refresher
	Version     string

	// EnumRoot is the registry subtree the elevated disable-all helper
	// re-enumerates. Empty means the default USB enumeration root.
	EnumRoot string

	// OnStatusEvent, when set, observes every elevation transition the
	// server relays. Used to mirror events to fleet transports.
	OnStatusEvent func(elevation.StatusEvent)

	// OnMutation, when set, observes the outcome of every direct
	// power-flag mutation. Elevated outcomes are reported through
	// OnStatusEvent instead.
	OnMutation func(action, outcome string)
}

// Server is the HTTP API server for USB Power Flow Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	store       *usb.Store
	executor    *usb.Executor
	coordinator *elevation.Coordinator
	history     usb.HistoryRepository
	refresher   Refresher
	version     string
	startedAt   time.Time
	server      *http.Server
	hub         *Hub
	tickets     *ticketStore
	enumRoot    string
	onEvent     func(elevation.StatusEvent)
	onMutation  func(action, outcome string)
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("device store is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("mutation executor is required")
	}
	// Coordinator is optional - without it, denied writes surface as
	// needs-elevation with no escalation path.

	enumRoot := deps.EnumRoot
	if enumRoot == "" {
		enumRoot = config.DefaultEnumRoot
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		store:       deps.Store,
		executor:    deps.Executor,
		coordinator: deps.Coordinator,
		history:     deps.History,
		refresher:   deps.Refresher,
		version:     deps.Version,
		tickets:     newTicketStore(),
		enumRoot:    enumRoot,
		onEvent:     deps.OnStatusEvent,
		onMutation:  deps.OnMutation,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, begins relaying
// elevation status events to connected clients, and launches the HTTP
// listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startedAt = time.Now()

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks
	go s.tickets.cleanLoop(srvCtx)

	// Relay elevation state transitions to WebSocket subscribers
	if s.coordinator != nil {
		go s.relayStatusEvents(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup, event relay)
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

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// NotifyDevicesUpdated broadcasts a snapshot-changed event. Called by
// the scan loop after every snapshot replacement.
func (s *Server) NotifyDevicesUpdated() {
	if s.hub == nil {
		return
	}
	stats := s.store.GetStats()
	s.hub.Broadcast(ChannelDevices, map[string]any{
		"seq":      stats.Seq,
		"devices":  stats.TotalDevices,
		"taken_at": stats.TakenAt,
	})
}

// relayStatusEvents forwards coordinator transitions to WebSocket
// subscribers until the server context is cancelled.
func (s *Server) relayStatusEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.coordinator.Events():
			if !ok {
				return
			}
			s.hub.Broadcast(ChannelStatus, map[string]any{
				"status": ev.Status,
				"at":     ev.At,
			})
			s.hub.Broadcast(ChannelOperation, map[string]any{
				"token":  ev.Token,
				"state":  ev.State,
				"status": ev.Status,
				"at":     ev.At,
			})
			if s.onEvent != nil {
				s.onEvent(ev)
			}
		}
	}
}
