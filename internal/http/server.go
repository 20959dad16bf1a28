package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slavakukuyev/elevator-go/internal/bank"
	"github.com/slavakukuyev/elevator-go/internal/constants"
	"github.com/slavakukuyev/elevator-go/internal/domain"
	"github.com/slavakukuyev/elevator-go/internal/elevator"
	"github.com/slavakukuyev/elevator-go/internal/factory"
	"github.com/slavakukuyev/elevator-go/internal/infra/config"
	"github.com/slavakukuyev/elevator-go/internal/infra/health"
	"github.com/slavakukuyev/elevator-go/internal/strategy"
)

// Server represents the HTTP server.
type Server struct {
	bank          *bank.Bank
	httpServer    *http.Server
	cfg           *config.Config
	logger        *slog.Logger
	healthService *health.HealthService
}

// FloorRequestBody represents the JSON request body.
type FloorRequestBody struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ElevatorRequestBody - represents the JSON request body.
type ElevatorRequestBody struct {
	Name     string `json:"name"`
	MinFloor int    `json:"min_floor"`
	MaxFloor int    `json:"max_floor"`
}

// upgrader is used to upgrade HTTP connections to WebSocket connections.
var upgrader = websocket.Upgrader{
	// Allow all origins for demonstration purposes.
	CheckOrigin: func(r *http.Request) bool { return true },
	// Set buffer sizes for better performance
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Disable compression as it can cause issues with some proxies
	EnableCompression: false,
	// Add error handler to get more details about upgrade failures
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		fmt.Printf("WebSocket upgrade error: %v (status: %d)\n", reason, status)
		http.Error(w, reason.Error(), status)
	},
}

// NewServer creates a new instance of Server with versioned API and middleware.
//
// Parameters:
// - cfg (*config.Config): The configuration instance.
// - port (int): The port number to listen on.
// - b (*bank.Bank): The elevator bank driving the service.
//
// Returns:
// - A pointer to the new Server instance.
func NewServer(cfg *config.Config, port int, b *bank.Bank) *Server {
	s := &Server{
		bank:          b,
		cfg:           cfg,
		logger:        slog.With(slog.String("component", constants.ComponentHTTPServer)),
		healthService: health.NewHealthService(30 * time.Second), // 30 second cache TTL
	}

	s.setupHealthChecks(b)

	addr := fmt.Sprintf(":%d", port)

	v1Handlers := NewV1Handlers(b, cfg, s.logger)

	rateLimiter := NewRateLimitMiddleware(cfg.RateLimitRPM, s.logger)

	middlewareChain := ChainMiddleware(
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		RecoveryMiddleware(s.logger),
		CORSMiddleware(),
		SecurityHeadersMiddleware(),
		rateLimiter.Handler(),
	)

	mux := http.NewServeMux()

	// === V1 API ROUTES ===
	mux.HandleFunc("/v1", v1Handlers.APIInfoHandler)
	mux.HandleFunc("/v1/floors/request", v1Handlers.FloorRequestHandler)
	mux.HandleFunc("/v1/elevators", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			v1Handlers.ElevatorCreateHandler(w, r)
		case http.MethodDelete:
			v1Handlers.ElevatorDeleteHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/v1/health", v1Handlers.HealthHandler)
	mux.HandleFunc("/v1/metrics", v1Handlers.MetricsHandler)

	// Enhanced health endpoints
	mux.HandleFunc("/v1/health/live", s.livenessHandler)
	mux.HandleFunc("/v1/health/ready", s.readinessHandler)
	mux.HandleFunc("/v1/health/detailed", s.detailedHealthHandler)

	// === MONITORING ROUTES ===
	mux.Handle("/metrics", promhttp.Handler())

	// Real-time elevator status feed
	mux.HandleFunc("/ws/status", s.statusWebSocketHandler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      middlewareChain(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// newConfiguredElevator builds an elevator from admin-supplied floor bounds,
// inheriting every timing/strategy/circuit-breaker knob from cfg.
func newConfiguredElevator(cfg *config.Config, name string, minFloor, maxFloor int) (*elevator.Elevator, error) {
	strategyCfg := strategy.Config{
		TravelTimePerFloorMs: cfg.TravelTimePerFloor.Milliseconds(),
		DoorOpenTimeMs:       cfg.DoorOpenTime.Milliseconds(),
		EstimationLimitMs:    cfg.EstimationLimit.Milliseconds(),
	}

	var strat *strategy.Strategy
	if cfg.UseFreeFirst {
		strat = strategy.NewInsertOrder(strategyCfg)
	} else {
		strat = strategy.NewStopEnRoute(strategyCfg)
	}

	cbCfg := elevator.CircuitBreakerConfig{
		MaxFailures:   cfg.CircuitBreakerMaxFailures,
		ResetTimeout:  cfg.CircuitBreakerResetTimeout,
		HalfOpenLimit: cfg.CircuitBreakerHalfOpenLimit,
	}

	f := factory.StandardElevatorFactory{}
	return f.CreateElevator(name, minFloor, maxFloor, cfg.InitialFloor,
		cfg.TravelTimePerFloor, cfg.DoorOpenTime, strat, cbCfg)
}

// setupHealthChecks initializes and registers health check components
func (s *Server) setupHealthChecks(b *bank.Bank) {
	s.healthService.Register(health.NewSystemResourceChecker(85.0, 1000))
	s.healthService.Register(health.NewLivenessChecker())

	bankHealthChecker := health.NewComponentHealthChecker("bank", func(ctx context.Context) (bool, string, map[string]interface{}) {
		ids := b.ListElevators()

		if len(ids) == 0 {
			return true, "System ready for elevator creation", map[string]interface{}{
				"elevator_count": 0,
				"system_state":   "initial_setup",
			}
		}

		details := map[string]interface{}{
			"total_elevators": len(ids),
			"running":         b.IsRunning(),
		}

		if !b.IsRunning() {
			return false, "Bank dispatch loop is not running", details
		}

		return true, "Bank and elevators are healthy", details
	})
	s.healthService.Register(bankHealthChecker)

	readinessChecker := health.NewReadinessChecker(bankHealthChecker)
	s.healthService.Register(readinessChecker)

	s.logger.Info("health checks initialized",
		slog.Int("registered_checkers", 4))
}

// livenessHandler handles liveness probe requests
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.healthService.Check(r.Context(), "liveness")
	if err != nil {
		http.Error(w, "Liveness check failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Status == health.StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// readinessHandler handles readiness probe requests
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.healthService.Check(r.Context(), "readiness")
	if err != nil {
		http.Error(w, "Readiness check failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Status == health.StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// detailedHealthHandler provides comprehensive health status
func (s *Server) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	overallStatus, results := s.healthService.GetOverallStatus(r.Context())

	response := map[string]interface{}{
		"status":    string(overallStatus),
		"timestamp": time.Now(),
		"checks":    results,
		"summary": map[string]interface{}{
			"total_checks":     len(results),
			"healthy_checks":   countChecksWithStatus(results, health.StatusHealthy),
			"degraded_checks":  countChecksWithStatus(results, health.StatusDegraded),
			"unhealthy_checks": countChecksWithStatus(results, health.StatusUnhealthy),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	var statusCode int
	switch overallStatus {
	case health.StatusUnhealthy:
		statusCode = http.StatusServiceUnavailable
	case health.StatusDegraded:
		statusCode = http.StatusOK
	default:
		statusCode = http.StatusOK
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// countChecksWithStatus counts health checks with a specific status
func countChecksWithStatus(results map[string]health.CheckResult, status health.Status) int {
	count := 0
	for _, result := range results {
		if result.Status == status {
			count++
		}
	}
	return count
}

// determineDirection returns the direction string based on floor movement
func determineDirection(from, to int) string {
	if to > from {
		return string(domain.DirectionUp)
	}
	return string(domain.DirectionDown)
}

// GetHandler returns the HTTP handler for testing purposes
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// statusWebSocketHandler handles WebSocket connections for elevator status updates.
// It periodically sends the current bank snapshot to the connected client.
func (s *Server) statusWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to upgrade connection to WebSocket",
			slog.String("error", err.Error()))
		return
	}
	defer func(ws *websocket.Conn) {
		if errOnClose := ws.Close(); errOnClose != nil {
			s.logger.ErrorContext(ctx, "failed to close WebSocket connection",
				slog.String("error", errOnClose.Error()))
		}
	}(ws)

	s.logger.InfoContext(ctx, "WebSocket connection established")

	if err := ws.WriteJSON(bankStatus(s.bank)); err != nil {
		s.logger.ErrorContext(ctx, "failed to send initial status via WebSocket",
			slog.String("error", err.Error()))
		return
	}

	statusTicker := time.NewTicker(s.cfg.StatusUpdateInterval)
	defer statusTicker.Stop()

	pingTicker := time.NewTicker(s.cfg.WebSocketPingInterval)
	defer pingTicker.Stop()

	wsCtx := ctx

	if err := ws.SetReadDeadline(time.Now().Add(s.cfg.WebSocketReadTimeout)); err != nil {
		s.logger.ErrorContext(ctx, "failed to set read deadline",
			slog.String("error", err.Error()))
		return
	}
	ws.SetPongHandler(func(string) error {
		if err := ws.SetReadDeadline(time.Now().Add(s.cfg.WebSocketReadTimeout)); err != nil {
			s.logger.ErrorContext(ctx, "failed to set read deadline in pong handler",
				slog.String("error", err.Error()))
		}
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, _, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.WarnContext(ctx, "WebSocket connection closed unexpectedly",
						slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			s.logger.InfoContext(ctx, "WebSocket connection closed by client")
			return

		case <-wsCtx.Done():
			s.logger.InfoContext(ctx, "WebSocket connection context cancelled")
			if err := ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutdown"), time.Now().Add(s.cfg.WebSocketWriteTimeout)); err != nil {
				s.logger.ErrorContext(ctx, "failed to send close message",
					slog.String("error", err.Error()))
			}
			return

		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(s.cfg.WebSocketWriteTimeout)); err != nil {
				s.logger.ErrorContext(ctx, "failed to set write deadline for ping",
					slog.String("error", err.Error()))
				return
			}
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.ErrorContext(ctx, "failed to send ping message",
					slog.String("error", err.Error()))
				return
			}

		case <-statusTicker.C:
			updateCtx, updateCancel := context.WithTimeout(wsCtx, s.cfg.StatusUpdateTimeout)

			statusCh := make(chan map[string]interface{}, 1)
			go func() {
				statusCh <- bankStatus(s.bank)
			}()

			var st map[string]interface{}
			select {
			case <-updateCtx.Done():
				s.logger.WarnContext(ctx, "status update timed out")
				updateCancel()
				continue
			case result := <-statusCh:
				st = result
			}
			updateCancel()

			if err := ws.SetWriteDeadline(time.Now().Add(s.cfg.WebSocketWriteTimeout)); err != nil {
				s.logger.ErrorContext(ctx, "failed to set write deadline for status update",
					slog.String("error", err.Error()))
				return
			}
			if err := ws.WriteJSON(st); err != nil {
				s.logger.ErrorContext(ctx, "failed to send status update via WebSocket",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}
