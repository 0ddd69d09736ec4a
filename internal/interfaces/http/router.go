// Package http wires the gin engine and the HTTP listener.
package http

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/ssoguard/internal/config"
	domainService "github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/internal/infrastructure/monitoring"
	"github.com/turtacn/ssoguard/internal/interfaces/http/handlers"
	"github.com/turtacn/ssoguard/internal/interfaces/http/middleware"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// RouterDeps 路由依赖. Tokens and Auth may be nil when SSO is disabled.
type RouterDeps struct {
	Config  *config.Config
	Logger  logger.Logger
	Tracer  trace.Tracer
	Metrics *monitoring.Metrics
	Tokens  domainService.TokenService
	Auth    *handlers.AuthHandler
	Health  *handlers.HealthHandler
}

// Server HTTP 服务器
type Server struct {
	engine *gin.Engine
	server *http.Server
	config *config.Config
	logger logger.Logger
}

// NewServer builds the engine and registers every route.
func NewServer(deps RouterDeps) *Server {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: gin.New(),
		config: cfg,
		logger: log.WithComponent("http_server"),
	}
	s.setupRoutes(deps)

	s.server = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           s.engine,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(deps RouterDeps) {
	cfg := deps.Config
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(constants.ServiceName)
	}
	var httpMetrics middleware.HTTPMetrics
	if deps.Metrics != nil {
		httpMetrics = deps.Metrics
	}

	// 全局中间件
	s.engine.Use(gin.Recovery())
	s.engine.Use(middleware.RequestContext())
	s.engine.Use(middleware.Observability(tracer, httpMetrics))
	s.engine.Use(middleware.RequestLogger(s.logger))
	if len(cfg.Server.AllowedOrigins) > 0 {
		s.engine.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	}

	ssoEnabled := cfg.SSO.Enabled && deps.Tokens != nil && deps.Auth != nil
	if ssoEnabled {
		s.engine.Use(middleware.Authenticate(deps.Tokens, cfg.SSO.PublicPaths, s.logger))
	}

	// 健康检查与指标
	if deps.Health != nil {
		s.engine.GET(constants.DefaultLivenessCheckPath, deps.Health.Liveness)
		s.engine.GET(constants.DefaultReadinessCheckPath, deps.Health.Readiness)
	}
	if deps.Metrics != nil {
		s.engine.GET(constants.DefaultMetricsPath, gin.WrapH(deps.Metrics.Handler()))
	}
	if cfg.Server.PprofEnabled {
		pprof.Register(s.engine)
	}

	if ssoEnabled {
		auth := s.engine.Group("/auth")
		if cfg.SSO.AuthMode() == constants.AuthModeLocal {
			auth.POST("/token", deps.Auth.Login)
			auth.POST("/refresh", deps.Auth.Refresh)
		}
		auth.POST("/introspect", deps.Auth.Introspect)
		auth.POST("/logout", deps.Auth.Logout)
		auth.GET("/userinfo", middleware.RequireAuthenticated(), deps.Auth.UserInfo)
	} else {
		s.logger.Info(context.Background(), "sso disabled, serving health and metrics only")
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             constants.ErrCodeNotFound,
			"error_description": "The requested resource was not found",
		})
	})
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "WWW-Authenticate"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 启动 HTTP 服务器, blocking until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info(context.Background(), "starting HTTP server", logger.String("address", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭 HTTP 服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "stopping HTTP server")
	return s.server.Shutdown(ctx)
}
