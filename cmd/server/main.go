package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appservice "github.com/turtacn/ssoguard/internal/application/service"
	"github.com/turtacn/ssoguard/internal/bootstrap"
	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/infrastructure/monitoring"
	"github.com/turtacn/ssoguard/internal/infrastructure/persistence"
	grpcserver "github.com/turtacn/ssoguard/internal/interfaces/grpc"
	httpserver "github.com/turtacn/ssoguard/internal/interfaces/http"
	"github.com/turtacn/ssoguard/internal/interfaces/http/handlers"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

func main() {
	var configFile string
	cmd := &cobra.Command{
		Use:           "ssoguard",
		Short:         "Bearer token lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	startupLogger, err := monitoring.NewZapLogger(config.LogConfig{Level: "info", Format: "json"})
	if err != nil {
		return err
	}

	loader := config.NewLoader(configFile, startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLogger, err := monitoring.NewZapLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	logger.SetGlobalLogger(appLogger)
	loader.Watch(ctx, func(next *config.Config) {
		appLogger.SetLevel(constants.LogLevel(next.Log.Level))
	})

	tracing, err := monitoring.NewTracingManager(cfg.Tracing, appLogger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	metrics := monitoring.NewMetrics()
	core, err := bootstrap.NewCore(ctx, cfg, bootstrap.Options{
		Fanout:  true,
		Metrics: metrics,
		Logger:  appLogger,
	})
	if err != nil {
		return fmt.Errorf("build token core: %w", err)
	}
	defer core.Close()

	authenticator, err := bootstrap.NewAuthenticator(cfg)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	auditSink, closeAudit, err := bootstrap.NewAuditService(ctx, cfg, core.Backends, appLogger)
	if err != nil {
		return fmt.Errorf("audit sink: %w", err)
	}
	defer func() { _ = closeAudit() }()

	authApp := appservice.NewAuthAppService(appservice.AuthAppDeps{
		Tokens:        core.Tokens,
		Authenticator: authenticator,
		Audit:         auditSink,
		RateLimiter:   bootstrap.NewRateLimiter(cfg, core.Backends, core.Clock, appLogger),
		Metrics:       metrics,
		Tracer:        tracing.Tracer(),
		Clock:         core.Clock,
		Logger:        appLogger,
	})

	httpSrv := httpserver.NewServer(httpserver.RouterDeps{
		Config:  cfg,
		Logger:  appLogger,
		Tracer:  tracing.Tracer(),
		Metrics: metrics,
		Tokens:  core.Tokens,
		Auth:    handlers.NewAuthHandler(authApp, appLogger),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthChecker{
			"backends": core.Backends,
		}, core.Clock, appLogger),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.Server.GRPCEnabled {
		grpcSrv := grpcserver.NewServer(grpcserver.NewInterceptorChain(appLogger, core.Tokens), appLogger)
		g.Go(func() error { return grpcSrv.Start(cfg.Server.GRPCAddress()) })
		g.Go(func() error {
			grpcSrv.MonitorReadiness(gctx, func(ctx context.Context) error {
				_, err := core.Backends.HealthCheck(ctx)
				return err
			}, 10*time.Second)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
			defer cancel()
			grpcSrv.Shutdown(shutdownCtx)
			return nil
		})
	}

	sweeper := persistence.NewSweeper(core.Backends.Store, cfg.Revocation.SweepInterval, core.Clock, metrics, appLogger)
	g.Go(func() error { return sweeper.Run(gctx) })

	if core.Consumer != nil {
		g.Go(func() error { return core.Consumer.Run(gctx) })
	}

	appLogger.Info(ctx, "ssoguard started",
		logger.String("mode", cfg.SSO.Mode),
		logger.Bool("sso_enabled", cfg.SSO.Enabled),
		logger.String("http", cfg.Server.Address()),
		logger.Bool("grpc", cfg.Server.GRPCEnabled),
	)

	if err := g.Wait(); err != nil {
		appLogger.Error(context.Background(), "ssoguard stopped with error", err)
		return err
	}
	appLogger.Info(context.Background(), "ssoguard stopped")
	return nil
}
