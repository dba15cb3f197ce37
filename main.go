package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostpulse/internal/cmdexec"
	"hostpulse/internal/config"
	"hostpulse/internal/controllers"
	"hostpulse/internal/logging"
	"hostpulse/internal/middleware"
	"hostpulse/internal/routes"
	"hostpulse/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to hostpulse.yaml (default: search . and ./config)")
	tokenFor := flag.String("token", "", "print a stream access token for the named client and exit")
	writeConfig := flag.String("write-config", "", "write the effective configuration to this path and exit")
	flag.Parse()

	if err := run(*configPath, *tokenFor, *writeConfig); err != nil {
		fmt.Fprintln(os.Stderr, "hostpulse:", err)
		os.Exit(1)
	}
}

func run(configPath, tokenFor, writeConfig string) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		Dir:         cfg.Log.Dir,
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if writeConfig != "" {
		if err := config.Save(writeConfig, cfg); err != nil {
			return err
		}
		logger.Info("configuration written", zap.String("file", writeConfig))
		return nil
	}

	issuer, err := services.NewTokenIssuer(cfg.Server.AuthSecret, cfg.Server.TokenTTL, logger)
	if err != nil {
		return err
	}
	if tokenFor != "" {
		return printToken(issuer, tokenFor, cfg.Server.Address)
	}

	return serve(loader, cfg, issuer, logger)
}

func printToken(issuer *services.TokenIssuer, name, address string) error {
	if !middleware.NewInputValidator().ValidateClientName(name) {
		return fmt.Errorf("invalid client name %q", name)
	}
	token, expires, err := issuer.Generate(name)
	if err != nil {
		return err
	}
	fmt.Printf("token:   %s\nexpires: %s\nstream:  ws://%s/ws?token=%s\n",
		token, expires.Format(time.RFC3339), address, token)
	return nil
}

func serve(loader *config.Loader, cfg config.Config, issuer *services.TokenIssuer, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names, err := services.NewProcessNameCache(cfg.ProcessCache.Capacity, nil, logger)
	if err != nil {
		return err
	}
	defer names.Close()

	source := services.NewConnectionSource(cmdexec.NewRunner())
	logger.Info("connection source selected", zap.String("source", fmt.Sprintf("%T", source)))

	scheduler, err := services.NewScheduler(cfg,
		services.NewResourceSampler(services.HostReader{}, cfg.Disk.Path, cfg.History.ChartCapacity, logger),
		services.NewConnectionEnumerator(source, names, logger),
		services.NewAlertEngine(cfg.Alerts.Rules, logger),
		services.NewAnomalyDetector(cfg.History.AnomalyCapacity, logger),
		logger)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	loader.Watch(logger, func(next config.Config) {
		if err := scheduler.UpdateConfig(next); err != nil {
			logger.Warn("config update rejected", zap.Error(err))
		}
	})

	state := scheduler.State()
	hub := services.NewWebSocketHub(state, logger)
	go hub.Run(ctx)

	security := middleware.NewSecurityLogger(logger)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	go pruneLimiters(ctx, limiter)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(cfg.Server, routes.Deps{
		Metrics:     controllers.NewMetricsController(state),
		Connections: controllers.NewConnectionsController(state),
		Alerts:      controllers.NewAlertsController(state, scheduler),
		WebSocket:   controllers.NewWebSocketController(hub, issuer, security, logger),
		Security:    security,
		Limiter:     limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pruneLimiters(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune(30 * time.Minute)
		}
	}
}
