package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slavakukuyev/elevator-go/internal/bank"
	"github.com/slavakukuyev/elevator-go/internal/elevator"
	"github.com/slavakukuyev/elevator-go/internal/factory"
	httpPkg "github.com/slavakukuyev/elevator-go/internal/http"
	"github.com/slavakukuyev/elevator-go/internal/infra/config"
	"github.com/slavakukuyev/elevator-go/internal/infra/logging"
	"github.com/slavakukuyev/elevator-go/internal/strategy"
)

func main() {
	cfg, err := config.InitConfig()
	if err != nil {
		slog.Error("failed to initialize configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	envInfo := cfg.GetEnvironmentInfo()
	slog.InfoContext(ctx, "elevator system starting up",
		slog.String("environment", cfg.Environment),
		slog.String("log_level", cfg.LogLevel),
		slog.Int("port", cfg.Port),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
		slog.Bool("websocket_enabled", cfg.WebSocketEnabled),
		slog.Bool("circuit_breaker_enabled", cfg.CircuitBreakerEnabled),
		slog.Any("config_summary", envInfo))

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

	elevatorBank := bank.New(bank.Config{
		MinFloor:     cfg.MinFloor,
		MaxFloor:     cfg.MaxFloor,
		UseFreeFirst: cfg.UseFreeFirst,
	}, slog.With(slog.String("component", "bank")))

	elevatorFactory := factory.StandardElevatorFactory{}

	if cfg.NrOfElevators > 0 {
		slog.InfoContext(ctx, "creating configured elevators",
			slog.Int("count", cfg.NrOfElevators),
			slog.String("prefix", cfg.NamePrefix))

		for i := 0; i < cfg.NrOfElevators; i++ {
			elevatorName := fmt.Sprintf("%s-%d", cfg.NamePrefix, i+1)
			e, err := elevatorFactory.CreateElevator(elevatorName, cfg.MinFloor, cfg.MaxFloor,
				cfg.InitialFloor, cfg.TravelTimePerFloor, cfg.DoorOpenTime, strat, cbCfg)
			if err != nil {
				slog.ErrorContext(ctx, "failed to build default elevator",
					slog.String("name", elevatorName),
					slog.String("error", err.Error()))
				continue
			}
			if err := elevatorBank.AddElevator(e); err != nil {
				slog.ErrorContext(ctx, "failed to register default elevator",
					slog.String("name", elevatorName),
					slog.String("error", err.Error()))
			} else {
				slog.InfoContext(ctx, "default elevator created",
					slog.String("name", elevatorName))
			}
		}
	}

	elevatorBank.Start()

	port := cfg.Port
	if port <= 0 {
		slog.WarnContext(ctx, "invalid port in configuration, using default",
			slog.Int("configured_port", port),
			slog.Int("default_port", 6660))
		port = 6660
	}

	server := httpPkg.NewServer(cfg, port, elevatorBank)
	wsServer := httpPkg.NewWebSocketServer(6661, elevatorBank, slog.With(slog.String("component", "websocket-server")))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var httpStarted, wsStarted bool
	serverErrCh := make(chan error, 2)

	go func() {
		slog.InfoContext(ctx, "starting HTTP server",
			slog.Int("port", port),
			slog.String("environment", cfg.Environment),
			slog.Duration("read_timeout", cfg.ReadTimeout),
			slog.Duration("write_timeout", cfg.WriteTimeout),
			slog.Duration("idle_timeout", cfg.IdleTimeout))

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "HTTP server failed to start",
				slog.Int("port", port),
				slog.String("error", err.Error()))
			serverErrCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	go func() {
		slog.InfoContext(ctx, "starting WebSocket server",
			slog.Int("port", 6661))

		if err := wsServer.Start(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "WebSocket server failed to start",
				slog.Int("port", 6661),
				slog.String("error", err.Error()))
			serverErrCh <- fmt.Errorf("WebSocket server failed: %w", err)
		}
	}()

	startupTimer := time.NewTimer(2 * time.Second)
	httpStarted = true
	wsStarted = true

	select {
	case err := <-serverErrCh:
		startupTimer.Stop()
		slog.ErrorContext(ctx, "server startup failed", slog.String("error", err.Error()))

		shutdownServers(server, wsServer, cfg, httpStarted, wsStarted)
		elevatorBank.ShutdownWithTimeout(cfg.ShutdownTimeout)
		os.Exit(1)

	case <-startupTimer.C:
		slog.InfoContext(ctx, "all servers started successfully")

	case sig := <-quit:
		startupTimer.Stop()
		slog.InfoContext(ctx, "received shutdown signal during startup",
			slog.String("signal", sig.String()))
		shutdownServers(server, wsServer, cfg, httpStarted, wsStarted)
		elevatorBank.ShutdownWithTimeout(cfg.ShutdownTimeout)
		return
	}

	sig := <-quit
	slog.InfoContext(ctx, "received shutdown signal",
		slog.String("signal", sig.String()),
		slog.Duration("shutdown_timeout", cfg.ShutdownTimeout))

	cancel()

	shutdownServers(server, wsServer, cfg, httpStarted, wsStarted)

	slog.InfoContext(ctx, "shutting down elevator bank")
	elevatorBank.ShutdownWithTimeout(cfg.ShutdownTimeout)
	slog.InfoContext(ctx, "elevator bank shutdown completed")

	<-time.After(cfg.ShutdownGrace)
	slog.InfoContext(ctx, "graceful shutdown completed",
		slog.Duration("grace_period", cfg.ShutdownGrace))
}

// shutdownServers gracefully shuts down both HTTP and WebSocket servers
func shutdownServers(server *httpPkg.Server, wsServer *httpPkg.WebSocketServer, cfg *config.Config, httpStarted, wsStarted bool) {
	slog.Info("shutting down servers gracefully")

	if httpStarted {
		if err := server.Shutdown(); err != nil {
			slog.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
		} else {
			slog.Info("HTTP server shutdown completed")
		}
	}

	if wsStarted {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("WebSocket server shutdown failed", slog.String("error", err.Error()))
		} else {
			slog.Info("WebSocket server shutdown completed")
		}
	}
}
