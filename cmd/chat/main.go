package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.date.chat/internal/config"
	"sudooom.date.chat/internal/handler"
	"sudooom.date.chat/internal/health"
	"sudooom.date.chat/internal/jwt"
	"sudooom.date.chat/internal/model"
	chatNats "sudooom.date.chat/internal/nats"
	"sudooom.date.chat/internal/payment"
	"sudooom.date.chat/internal/repository"
	"sudooom.date.chat/internal/router"
	"sudooom.date.chat/internal/service"
	"sudooom.date.chat/internal/snowflake"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.App.LogLevel),
	})).With("service", cfg.App.Name)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create id generator", "nodeId", cfg.App.NodeID, "error", err)
		os.Exit(1)
	}

	// 连接 NATS
	natsClient, err := chatNats.NewClient(cfg.NATS, cfg.App.Name)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr())

	healthChecker := health.NewChecker(2*time.Second).
		Register("nats", health.NATSProbe(natsClient.Conn())).
		Register("redis", health.RedisProbe(redisClient))

	// 存储
	var (
		convs repository.ConversationStore
		users repository.UserStore
	)
	switch cfg.Storage.Driver {
	case "memory":
		memUsers := repository.NewMemoryUserStore(model.User{ID: cfg.Chat.SystemAccountID, Nickname: "system"})
		for _, id := range cfg.Storage.SeedUsers {
			memUsers.Put(model.User{ID: id, Balance: model.DefaultBalance})
		}
		convs = repository.NewMemoryConversationStore(ids)
		users = memUsers
		logger.Warn("Using in-memory storage, data is lost on restart", "seedUsers", len(cfg.Storage.SeedUsers))
	default:
		db, err := connectDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

		convs = repository.NewConversationRepository(db, ids, cfg.Chat.StoreTimeout)
		users = repository.NewUserRepository(db, cfg.Chat.StoreTimeout)
		healthChecker.Register("database", health.PostgresProbe(db))
	}

	// 初始化服务
	retrier := service.Retrier{
		MaxAttempts:     cfg.Chat.Retry.MaxAttempts,
		InitialInterval: cfg.Chat.Retry.InitialInterval,
		MaxInterval:     cfg.Chat.Retry.MaxInterval,
	}
	online := service.NewRedisOnlineRegistry(redisClient, cfg.Chat.OnlineTTL)
	publisher := chatNats.NewEventPublisher(natsClient.Conn())

	balance := service.NewBalanceMeter(users)
	presence := service.NewPresenceNotifier(convs, users, online, retrier, service.PresenceConfig{
		SystemAccountID: cfg.Chat.SystemAccountID,
		WelcomeMessage:  cfg.Chat.WelcomeMessage,
		Timeout:         cfg.Chat.PresenceTimeout,
	})
	conversationService := service.NewConversationService(convs, users, balance, presence, publisher, retrier)

	paymentProvider := payment.NewBreakerProvider(
		payment.NewHTTPProvider(cfg.Payment.Endpoint, cfg.Payment.APIKey, cfg.Payment.Currency, cfg.Payment.Timeout),
		payment.BreakerConfig{
			Name:             "payment",
			FailureThreshold: cfg.Payment.FailureThreshold,
			OpenTimeout:      cfg.Payment.OpenTimeout,
		},
	)
	walletService := service.NewWalletService(users, paymentProvider, cfg.Wallet.Tiers)

	// 启动上行事件订阅
	subscriber := chatNats.NewEventSubscriber(natsClient.Conn(), handler.NewEventHandler(conversationService), chatNats.SubscriberConfig{
		WorkerCount: cfg.NATS.WorkerCount,
		BufferSize:  cfg.NATS.BufferSize,
	})
	if err := subscriber.Start(); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}

	// HTTP API
	engine := router.SetupRouter(cfg.App.Mode, jwt.NewService(cfg.JWT.SecretKey),
		handler.NewConversationHandler(conversationService, online),
		handler.NewWalletHandler(walletService, balance),
	)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go serve(apiServer, "API server", logger)

	// 健康检查
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HealthPort),
		Handler:           healthChecker.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go serve(healthServer, "Health check server", logger)

	logger.Info("Chat service started",
		"name", cfg.App.Name,
		"storage", cfg.Storage.Driver,
		"probes", healthChecker.Names())

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}
	if err := subscriber.Stop(shutdownCtx); err != nil {
		logger.Error("Subscriber shutdown failed", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
	}
	cancel()
	logger.Info("Chat service stopped")
}

func serve(server *http.Server, name string, logger *slog.Logger) {
	logger.Info(name+" started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(name+" failed", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
