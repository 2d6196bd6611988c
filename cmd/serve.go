package cmd

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/breviobot/breviobot-service/app/controller"
	"github.com/breviobot/breviobot-service/app/database"
	authgrpc "github.com/breviobot/breviobot-service/app/grpc"
	"github.com/breviobot/breviobot-service/app/mailer"
	"github.com/breviobot/breviobot-service/app/middleware"
	"github.com/breviobot/breviobot-service/app/repository"
	"github.com/breviobot/breviobot-service/app/service"
	"github.com/breviobot/breviobot-service/app/summarizer"
	"github.com/breviobot/breviobot-service/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start the HTTP (Echo) API and the gRPC token validation service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type services struct {
	workflow   *service.VerificationWorkflow
	sessions   *service.UserAuthService
	summarizer summarizer.Summarizer
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	svc, err := buildServices(db, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build services")
	}

	grpcServer, healthServer := authgrpc.NewServer(svc.sessions, cfg.Auth)
	go startGRPCServer(cfg, grpcServer.Serve)

	e := newHTTPServer(cfg, db, svc)
	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdown(e, healthServer, grpcServer.GracefulStop)
}

func buildServices(db *sql.DB, cfg *config.Config) (*services, error) {
	tokens, err := service.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, err
	}

	summaries, err := summarizer.New(cfg.Summarizer)
	if err != nil {
		return nil, err
	}

	store := service.NewCredentialStore(db, repository.NewUserRepository(db), service.NewBcryptHasher(cfg.Auth.BcryptCost))
	return &services{
		workflow:   service.NewVerificationWorkflow(store, mailer.New(cfg.Email), cfg),
		sessions:   service.NewUserAuthService(store, tokens, repository.NewRevokedTokenRepository(db)),
		summarizer: summaries,
	}, nil
}

func newHTTPServer(cfg *config.Config, db *sql.DB, svc *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(svc.workflow, svc.sessions)
	summarizeController := controller.NewSummarizeController(svc.summarizer, cfg.Summarizer.MaxInputLength)
	healthController := controller.NewHealthController(db)
	authMiddleware := middleware.NewAuthMiddleware(svc.sessions, cfg.Auth)

	e.GET("/health", healthController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Each limited route gets its own per-IP budget.
	e.POST("/signup", authController.Signup, middleware.RateLimit(cfg.RateLimit))
	e.GET("/verify", authController.Verify)
	e.POST("/verify/resend", authController.ResendVerification, middleware.RateLimit(cfg.RateLimit))
	e.POST("/login", authController.Login, middleware.RateLimit(cfg.RateLimit))
	e.POST("/refresh", authController.Refresh, middleware.RateLimit(cfg.RateLimit))

	protected := e.Group("")
	protected.Use(authMiddleware.RequireAuth)
	protected.POST("/logout", middleware.WithIdentity(authController.Logout))
	protected.GET("/me", middleware.WithIdentity(authController.Me))
	protected.POST("/api/summarize", middleware.WithIdentity(summarizeController.Summarize))

	return e
}

func startGRPCServer(cfg *config.Config, serve func(net.Listener) error) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	if err := serve(lis); err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
}

func shutdown(e *echo.Echo, healthServer *health.Server, stopGRPC func()) {
	healthServer.SetServingStatus(authgrpc.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	stopGRPC()
}
