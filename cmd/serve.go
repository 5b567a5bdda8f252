package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-school-payments/app/auth"
	"github.com/vibast-solutions/ms-go-school-payments/app/controller"
	"github.com/vibast-solutions/ms-go-school-payments/app/events"
	"github.com/vibast-solutions/ms-go-school-payments/app/gateway"
	paymentgrpc "github.com/vibast-solutions/ms-go-school-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-school-payments/app/lock"
	"github.com/vibast-solutions/ms-go-school-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-school-payments/app/repository"
	"github.com/vibast-solutions/ms-go-school-payments/app/service"
	"github.com/vibast-solutions/ms-go-school-payments/config"
	"github.com/vibast-solutions/ms-go-school-payments/migrations"

	_ "github.com/go-sql-driver/mysql"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const createPaymentLockPrefix = "lock:create-payment:"

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the school payments service.",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

type services struct {
	cfg          *config.Config
	payments     *service.PaymentService
	transactions *service.TransactionService
	metrics      *metrics.Metrics
}

func runServe(_ *cobra.Command, _ []string) {
	svc, cleanup := mustCreateServices()
	defer cleanup()
	cfg := svc.cfg

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	e := setupHTTPServer(svc, tokens)
	grpcSrv, healthSrv, lis := setupGRPCServer(cfg, paymentgrpc.NewServer(svc.transactions), tokens)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(svc *services, tokens *auth.TokenManager) *echo.Echo {
	orderController := controller.NewOrderController(svc.payments)
	transactionController := controller.NewTransactionController(svc.transactions)
	webhookController := controller.NewWebhookController(svc.payments)

	requestIDGenerator, err := nanoid.Standard(21)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create request id generator")
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: requestIDGenerator,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
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
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: svc.cfg.HTTP.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
	}))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(tokens.EchoMiddleware("/webhook", "/health", "/metrics"))

	e.GET("/health", controller.Health)
	e.GET("/metrics", echo.WrapHandler(svc.metrics.Handler()))

	orders := e.Group("/orders")
	orders.POST("/create-payment", orderController.CreatePayment)
	orders.GET("/status/:collect_id", orderController.GetOrderStatus)

	transactions := e.Group("/transactions")
	transactions.GET("", transactionController.ListTransactions)
	transactions.GET("/school/:schoolId", transactionController.ListSchoolTransactions)
	transactions.GET("/status/:custom_order_id", transactionController.GetTransactionStatus)

	e.POST("/webhook", webhookController.HandleWebhook)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	transactionsServer *paymentgrpc.Server,
	tokens *auth.TokenManager,
) (*grpc.Server, *health.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			paymentgrpc.RecoveryInterceptor(),
			paymentgrpc.RequestIDInterceptor(),
			paymentgrpc.LoggingInterceptor(),
			tokens.UnaryServerInterceptor(),
		),
	)
	paymentgrpc.RegisterTransactionsServer(grpcSrv, transactionsServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(paymentgrpc.TransactionsServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, healthSrv, lis
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustCreateServices() (*services, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)

	if migrateOnStart {
		if err := migrations.Up(db); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
		logrus.Info("Database migrations applied")
	}

	closers := []func() error{db.Close}

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unavailable, creation lock will fail open")
		}
		cancel()
		locker = lock.NewRedisLocker(redisClient, createPaymentLockPrefix, cfg.Redis.LockTTL)
		closers = append(closers, redisClient.Close)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout)
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	orderRepo := repository.NewOrderRepository(db)
	statusRepo := repository.NewOrderStatusRepository(db)
	webhookRepo := repository.NewWebhookLogRepository(db)

	gatewayClient := gateway.NewClient(gateway.Config{
		URL:         cfg.Gateway.URL,
		APIKey:      cfg.Gateway.APIKey,
		PGKey:       cfg.Gateway.PGKey,
		HTTPTimeout: cfg.Gateway.HTTPTimeout,
	})

	paymentService := service.NewPaymentService(
		orderRepo,
		statusRepo,
		webhookRepo,
		repository.NewTransactor(db),
		gatewayClient,
		locker,
		publisher,
		m,
		cfg.Payments,
		cfg.Gateway.SchoolID,
	)
	transactionService := service.NewTransactionService(orderRepo, statusRepo, cfg.Payments)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logrus.WithError(err).Warn("Failed to close resource")
			}
		}
	}

	return &services{
		cfg:          cfg,
		payments:     paymentService,
		transactions: transactionService,
		metrics:      m,
	}, cleanup
}
