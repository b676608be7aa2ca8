package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"research-chat/internal/config"
	"research-chat/internal/db"
	grpchealth "research-chat/internal/grpc"
	"research-chat/internal/handlers"
	"research-chat/internal/identity"
	"research-chat/internal/middleware"
	"research-chat/internal/observability"
	"research-chat/internal/rabbitmq"
	"research-chat/internal/repositories"
	"research-chat/internal/services"
	"research-chat/internal/storage"
	"research-chat/internal/telemetry"
	"research-chat/internal/ws"
)

const auditRoutingKey = "audit.chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	store, checks, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	presence, redisClient, err := openPresence(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to parse redis url", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditor := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Environment, logger)
	logger.Info("event publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)))

	files, err := storage.Open(storage.Options{
		Driver:           cfg.StorageDriver,
		Dir:              cfg.UploadDir,
		BaseURL:          cfg.PublicBaseURL,
		CloudinaryURL:    cfg.CloudinaryURL,
		CloudinaryFolder: cfg.CloudFolder,
	})
	if err != nil {
		logger.Fatal("failed to open file storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	hub := ws.NewHub(presence, logger)
	go hub.Run(ctx)

	chatService := services.NewChatService(store)
	messagingService := services.NewMessagingService(store, files, hub, cfg.MaxUploadBytes)
	groupService := services.NewGroupService(store, files, hub, cfg.MaxUploadBytes)

	resolver := identity.NewJWTResolver(cfg.JWTSecret)
	wsRouter := ws.NewRouter(hub, messagingService, groupService, logger)
	wsHandler := ws.NewHandler(ctx, hub, wsRouter, resolver, store.Groups, logger)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		otelgin.Middleware(cfg.ServiceName),
		observability.RequestID(),
		observability.GinLogger(logger),
		observability.HTTPMetricsMiddleware(),
		gin.Recovery(),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.StorageDriver == config.StorageLocal {
		router.Static("/uploads", cfg.UploadDir)
	}
	router.GET("/ws", wsHandler.Handle)

	api := router.Group("/", middleware.AuthMiddleware(resolver))
	handlers.RegisterChatRoutes(api,
		handlers.NewChatHandler(chatService),
		handlers.NewGroupHandler(groupService, auditor, cfg.MaxUploadBytes),
		handlers.NewMessageHandler(messagingService, auditor, cfg.MaxUploadBytes),
	)
	handlers.RegisterDebugRoutes(router, auditor, cfg.DebugRoutes)

	healthServer := grpchealth.NewHealthServer(logger, checks)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		logger.Fatal("failed to listen for grpc health", zap.Error(err))
	}
	go healthServer.Watch(ctx, 15*time.Second)
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			logger.Error("grpc health server stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("chat service listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	healthServer.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// openStore connects the configured backend and returns its health check.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Store, map[string]grpchealth.Check, func(), error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, mdb, err := db.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return repositories.Store{}, nil, nil, err
		}
		checks := map[string]grpchealth.Check{
			"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		return repositories.NewMongoStore(mdb), checks, closeFn, nil
	default:
		database, err := db.Connect(connectCtx, cfg.DBDSN, logger)
		if err != nil {
			return repositories.Store{}, nil, nil, err
		}
		checks := map[string]grpchealth.Check{
			"postgres": database.PingContext,
		}
		return repositories.NewPostgresStore(database), checks, func() { database.Close() }, nil
	}
}

// openPresence uses Redis when configured and process memory otherwise.
func openPresence(redisURL string) (ws.PresenceStore, *redis.Client, error) {
	if redisURL == "" {
		return ws.NewMemoryPresence(), nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return ws.NewRedisPresence(client, ""), client, nil
}
