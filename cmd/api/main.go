package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feed-system/warbler/internal/config"
	"github.com/feed-system/warbler/internal/handlers"
	"github.com/feed-system/warbler/internal/middleware"
	"github.com/feed-system/warbler/internal/repository"
	"github.com/feed-system/warbler/internal/services"
	"github.com/feed-system/warbler/pkg/logger"
	"github.com/feed-system/warbler/pkg/queue"
	"github.com/feed-system/warbler/pkg/session"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Warbler API server...")

	// 初始化数据库
	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// 自动迁移数据库表
	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// 初始化Redis会话存储
	redisClient := session.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	sessions := session.NewStore(redisClient, cfg.JWT.ExpireTime)
	if err := sessions.Ping(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// 初始化事件发布，未配置 broker 时不发送
	var publisher queue.Publisher = queue.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = queue.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topics.SocialEvents)
	} else {
		logger.Warn("No Kafka brokers configured, social events will not be published")
	}
	defer publisher.Close()

	// 初始化仓库
	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)

	// 初始化服务
	authService := services.NewAuthService(userRepo, publisher, logger)
	userService := services.NewUserService(db.DB, userRepo, followRepo, messageRepo, likeRepo, publisher, logger)
	messageService := services.NewMessageService(db.DB, messageRepo, likeRepo, userRepo, publisher, logger)
	likeService := services.NewLikeService(db.DB, likeRepo, messageRepo, userRepo, publisher, logger)
	feedService := services.NewFeedService(messageRepo, &cfg.Feed, logger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		AuthService:    authService,
		UserService:    userService,
		MessageService: messageService,
		LikeService:    likeService,
		FeedService:    feedService,
		Sessions:       sessions,
		JWT: &middleware.JWTConfig{
			Secret:     cfg.JWT.Secret,
			ExpireTime: cfg.JWT.ExpireTime,
			CookieName: cfg.JWT.CookieName,
		},
		SecureCookie: cfg.JWT.Secure,
		Logger:       logger,
	})

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
